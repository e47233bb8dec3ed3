package tracker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// PacketStatus is the lifecycle state of a handoff packet.
type PacketStatus string

const (
	PacketDraft   PacketStatus = "draft"
	PacketActive  PacketStatus = "active"
	PacketDone    PacketStatus = "done"
	PacketBlocked PacketStatus = "blocked"
)

var packetStatuses = map[PacketStatus]bool{
	PacketDraft:   true,
	PacketActive:  true,
	PacketDone:    true,
	PacketBlocked: true,
}

// Meta is the YAML front matter of a packet document. The ID is assigned
// at creation and never changes.
type Meta struct {
	ID        string       `yaml:"id"`
	Status    PacketStatus `yaml:"status"`
	CreatedAt time.Time    `yaml:"created_at"`
	UpdatedAt time.Time    `yaml:"updated_at"`
	Purpose   string       `yaml:"purpose"`
	Confirmed []string     `yaml:"confirmed_files,omitempty"`
	Suggested []string     `yaml:"suggested_files,omitempty"`
}

// Packet is a markdown handoff document: YAML front matter plus freeform
// prose sections. The prose body is opaque to this package.
type Packet struct {
	Meta Meta
	Body string
}

// defaultBody seeds the canonical sections of a fresh packet.
const defaultBody = `# Purpose

# Decisions

# Next Steps

# Relevant Files
`

// NewPacket creates a draft packet with a fresh id and the canonical
// section skeleton.
func NewPacket(purpose string, confirmed, suggested []string) *Packet {
	now := time.Now().UTC()
	return &Packet{
		Meta: Meta{
			ID:        uuid.NewString(),
			Status:    PacketDraft,
			CreatedAt: now,
			UpdatedAt: now,
			Purpose:   purpose,
			Confirmed: confirmed,
			Suggested: suggested,
		},
		Body: defaultBody,
	}
}

// PacketStore persists packets under <stateDir>/packets.
type PacketStore struct {
	dir string
}

// NewPacketStore returns the packet store for a project state directory.
func NewPacketStore(stateDir string) *PacketStore {
	return &PacketStore{dir: filepath.Join(stateDir, "packets")}
}

func (s *PacketStore) path(id string) string {
	return filepath.Join(s.dir, id+".md")
}

// Save writes the packet atomically via a sibling temp file and rename.
func (s *PacketStore) Save(p *Packet) error {
	if p.Meta.ID == "" {
		return fmt.Errorf("packet has no id")
	}
	if !packetStatuses[p.Meta.Status] {
		return fmt.Errorf("unknown packet status %q", p.Meta.Status)
	}
	front, err := yaml.Marshal(&p.Meta)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(front)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimLeft(p.Body, "\n"))
	if !strings.HasSuffix(p.Body, "\n") {
		b.WriteString("\n")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, p.Meta.ID+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path(p.Meta.ID)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Load reads one packet by id.
func (s *PacketStore) Load(id string) (*Packet, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, err
	}
	p, err := parsePacket(string(data))
	if err != nil {
		return nil, fmt.Errorf("packet %s: %w", id, err)
	}
	return p, nil
}

// Find resolves an id or unique id prefix to a packet.
func (s *PacketStore) Find(idOrPrefix string) (*Packet, error) {
	if idOrPrefix == "" {
		return nil, fmt.Errorf("empty packet id")
	}
	if p, err := s.Load(idOrPrefix); err == nil {
		return p, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("no packet matching %q", idOrPrefix)
	}
	var matches []string
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".md")
		if name != e.Name() && strings.HasPrefix(name, idOrPrefix) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no packet matching %q", idOrPrefix)
	case 1:
		return s.Load(matches[0])
	default:
		return nil, fmt.Errorf("packet prefix %q is ambiguous (%d matches)", idOrPrefix, len(matches))
	}
}

// List returns all packets, newest first. Unreadable documents are
// skipped and reported as warnings.
func (s *PacketStore) List() ([]*Packet, []string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var packets []*Packet
	var warnings []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		p, err := s.Load(strings.TrimSuffix(e.Name(), ".md"))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping %s: %v", e.Name(), err))
			continue
		}
		packets = append(packets, p)
	}
	sort.Slice(packets, func(i, j int) bool {
		return packets[i].Meta.CreatedAt.After(packets[j].Meta.CreatedAt)
	})
	return packets, warnings, nil
}

// SetStatus transitions a packet to a new status and persists it.
func (s *PacketStore) SetStatus(idOrPrefix string, status PacketStatus) (*Packet, error) {
	if !packetStatuses[status] {
		return nil, fmt.Errorf("unknown packet status %q", status)
	}
	p, err := s.Find(idOrPrefix)
	if err != nil {
		return nil, err
	}
	p.Meta.Status = status
	p.Meta.UpdatedAt = time.Now().UTC()
	if err := s.Save(p); err != nil {
		return nil, err
	}
	return p, nil
}

func parsePacket(doc string) (*Packet, error) {
	rest, ok := strings.CutPrefix(doc, "---\n")
	if !ok {
		return nil, fmt.Errorf("missing front matter")
	}
	front, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return nil, fmt.Errorf("unterminated front matter")
	}
	var meta Meta
	if err := yaml.Unmarshal([]byte(front), &meta); err != nil {
		return nil, fmt.Errorf("front matter: %w", err)
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("front matter has no id")
	}
	if !packetStatuses[meta.Status] {
		return nil, fmt.Errorf("unknown packet status %q", meta.Status)
	}
	return &Packet{Meta: meta, Body: strings.TrimLeft(body, "\n")}, nil
}
