package board

import (
	"strings"
	"time"
)

// ChecklistItem is the shared shape of KPIs and Requirements. IDs are unique
// within the list that owns them.
type ChecklistItem struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Target    string `json:"target" yaml:"target"`
	Completed bool   `json:"completed" yaml:"completed"`
	Evidence  string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// ItemPatch carries the fields an update may change. Nil fields are left alone.
type ItemPatch struct {
	Completed *bool
	Evidence  *string
}

// Complete is a convenience patch marking an item done with the given evidence.
func Complete(evidence string) ItemPatch {
	done := true
	return ItemPatch{Completed: &done, Evidence: &evidence}
}

func (p ItemPatch) apply(item ChecklistItem) ChecklistItem {
	if p.Completed != nil {
		item.Completed = *p.Completed
	}
	if p.Evidence != nil {
		item.Evidence = *p.Evidence
	}
	return item
}

// Position is the canvas coordinate of a task. It has no effect on gating.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Agent is a roster entry. Tasks reference agents, they never own them.
type Agent struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Avatar      string `json:"avatar" yaml:"avatar"`
	Description string `json:"description" yaml:"description"`
	// Endpoint is the chat URL for the agent; empty means scripted only.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Task is a node in the planning graph.
type Task struct {
	ID           string
	Name         string
	Description  string
	Icon         string
	Completed    bool
	Position     Position
	KPIs         []ChecklistItem
	Requirements []ChecklistItem
	Predecessors []string
	Successors   []string
	GroupMembers []*Agent
	Discussion   []Message
}

// clone returns a shallow copy whose slices can be replaced without touching
// the receiver. Agents stay shared.
func (t *Task) clone() *Task {
	cp := *t
	return &cp
}

// KPI returns the KPI with the given id.
func (t *Task) KPI(id string) (ChecklistItem, bool) {
	for _, k := range t.KPIs {
		if k.ID == id {
			return k, true
		}
	}
	return ChecklistItem{}, false
}

// SenderType distinguishes who authored a message.
type SenderType string

const (
	SenderAgent SenderType = "agent"
	SenderUser  SenderType = "user"
)

// BlockType tags a content block.
type BlockType string

const (
	BlockText BlockType = "text"
	BlockFile BlockType = "file"
)

// File references an attachment.
type File struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	MIMEType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
}

// ContentBlock is one piece of a message body.
type ContentBlock struct {
	Type BlockType `json:"type"`
	Text string    `json:"text,omitempty"`
	File *File     `json:"file,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// FileBlock builds a file content block.
func FileBlock(f File) ContentBlock {
	return ContentBlock{Type: BlockFile, File: &f}
}

// Message is a transcript entry. Seq is assigned when the message is
// dispatched and decides its position in the transcript.
type Message struct {
	ID               string         `json:"id"`
	Seq              uint64         `json:"seq"`
	CreatedAt        time.Time      `json:"createdAt"`
	SenderType       SenderType     `json:"senderType"`
	SenderID         string         `json:"senderId,omitempty"`
	SenderLabel      string         `json:"senderLabel,omitempty"`
	Content          []ContentBlock `json:"content"`
	TaskID           string         `json:"taskId,omitempty"`
	ReplyToMessageID string         `json:"replyToMessageId,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Text joins the message's text blocks.
func (m Message) Text() string {
	var parts []string
	for _, block := range m.Content {
		if block.Type == BlockText && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
