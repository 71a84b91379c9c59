package service

import (
	"fmt"
	"strings"

	"github.com/Strob0t/RepoWarden/internal/domain/agentdef"
	"github.com/Strob0t/RepoWarden/internal/domain/document"
	"github.com/Strob0t/RepoWarden/internal/port/collaborator"
)

// buildRequest assembles the collaborator prompt from an agent
// definition and the supplied input. The system part carries identity
// and constraints; the user part carries the work order and the exact
// response contract.
func buildRequest(def *agentdef.Definition, input document.Document) collaborator.Request {
	return collaborator.Request{
		System: buildSystem(def),
		Prompt: buildPrompt(def),
		Input:  input,
	}
}

func buildSystem(def *agentdef.Definition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s\n", def.Name, def.Role)
	fmt.Fprintf(&b, "Goal: %s\n", def.Goal)

	writeList(&b, "Non-goals", def.NonGoals)
	writeList(&b, "Operating rules", def.OperatingRules)
	writeList(&b, "You may only write under", def.Allowed)
	writeList(&b, "You must never write under", def.Disallowed)
	writeList(&b, "Stop immediately when", def.StopConditions)

	return strings.TrimRight(b.String(), "\n")
}

func buildPrompt(def *agentdef.Definition) string {
	var b strings.Builder

	if len(def.Tasks) > 0 {
		b.WriteString("Perform these tasks in order:\n")
		for i, task := range def.Tasks {
			fmt.Fprintf(&b, "%d. %s\n", i+1, task)
		}
	}
	writeList(&b, "Before finishing, verify", def.Validation)

	b.WriteString("Respond with a single JSON object")
	if len(def.Output.Fields) > 0 {
		b.WriteString(" with these fields:\n")
		for _, f := range def.Output.Fields {
			req := "optional"
			if f.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "- %s: %s (%s)\n", f.Name, f.Kind, req)
		}
	} else {
		b.WriteString(".\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
