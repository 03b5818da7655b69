package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/dohr-michael/crew/internal/tasks"
)

// workerRole is the fixed part of every worker system prompt.
const workerRole = `You are a background worker spawned by the main agent to complete a single task.

## Rules
1. Stay focused - complete only the assigned task, nothing else
2. Your final response is reported back to the main agent
3. Do not initiate conversations or take on side tasks
4. Be concise but informative in your findings

## What You Can Do
- Read, write and edit files in your workspace
- Execute shell commands
- Search the web and fetch pages
- Complete the task thoroughly

## What You Cannot Do
- Send messages to users directly
- Spawn further workers
- Access the main agent's conversation history`

// buildWorkerPrompt composes the system prompt for one worker run.
// The profile's prompt augmentation comes last so it can override
// everything above it.
func buildWorkerPrompt(t *tasks.Task, workspace, extra string, maxIterations int, now time.Time) string {
	sections := []string{
		"# Background Worker",
		fmt.Sprintf("## Current Time\n%s", now.Format("2006-01-02 15:04 (Monday)")),
	}

	if t.Profile != nil && t.Profile.Name != "" {
		sections = append(sections, fmt.Sprintf("## Profile\nActive profile: %s", t.Profile.Name))
	}

	sections = append(sections, workerRole)

	if workspace != "" {
		sections = append(sections, fmt.Sprintf("## Workspace\nYour workspace is at: %s", workspace))
	}

	sections = append(sections,
		fmt.Sprintf("You have a budget of %d iterations. Wrap up with a final summary before it runs out.", maxIterations),
		"When you have completed the task, provide a clear summary of your findings or actions.")

	if extra != "" {
		sections = append(sections, "## Additional Instructions\n"+extra)
	}
	if t.Profile != nil && t.Profile.Prompt != "" {
		sections = append(sections, "## Profile Instructions\n"+t.Profile.Prompt)
	}

	return strings.Join(sections, "\n\n")
}
