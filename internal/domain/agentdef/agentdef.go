// Package agentdef defines agent-definition documents: the on-disk
// contract describing a named, permission-scoped unit of work. One
// file is one agent; the section grammar is fixed and order-significant.
package agentdef

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/Strob0t/RepoWarden/internal/domain/document"
	"github.com/Strob0t/RepoWarden/internal/domain/permission"
)

// Definition is a validated, immutable agent definition. Instances are
// created at registry load and never mutated; picking up source changes
// requires constructing a new registry.
type Definition struct {
	Name           string           `json:"name"`
	Class          permission.Class `json:"class"`
	Role           string           `json:"role"`
	Goal           string           `json:"goal"`
	NonGoals       []string         `json:"non_goals,omitempty"`
	Allowed        []string         `json:"allowed,omitempty"`
	Disallowed     []string         `json:"disallowed,omitempty"`
	OperatingRules []string         `json:"operating_rules,omitempty"`
	Input          document.Shape   `json:"input"`
	Prechecks      []string         `json:"prechecks,omitempty"`
	Tasks          []string         `json:"tasks,omitempty"`
	Validation     []string         `json:"validation,omitempty"`
	Output         document.Shape   `json:"output"`
	FailureModes   []string         `json:"failure_modes,omitempty"`
	StopConditions []string         `json:"stop_conditions,omitempty"`
	SourcePath     string           `json:"source_path"`
	ContentHash    string           `json:"content_hash"`
}

// Permissions derives the capability set for this definition's class.
// The class-level set is the contract; the Allowed/Disallowed lists in
// the document are advisory scope narrowing recorded for audit.
func (d *Definition) Permissions() permission.Permissions {
	return permission.Derive(d.Class)
}

// Hash computes the stable content fingerprint of a definition
// document. It is used to detect drift between two load cycles without
// relying on file modification time.
func Hash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
