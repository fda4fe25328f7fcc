// Package view presents the scheduler's job list to the outside world: as a
// tree of display nodes and over HTTP.
package view

import (
	"math"
	"strconv"

	"github.com/dxmate/dxmate/internal/job"
	"github.com/dxmate/dxmate/internal/scheduler"
)

// Icons by status.
const (
	IconScheduled  = "clock"
	IconInProgress = "sync~spin"
	IconSuccess    = "pass"
	IconError      = "error"
	IconCancelled  = "circle-slash"
)

// Node is one row of the job tree.
type Node struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Icon        string     `json:"icon"`
	Status      job.Status `json:"status"`
	Command     string     `json:"command,omitempty"`
	Children    []Node     `json:"children,omitempty"`
}

// Tree maps the current jobs of s into nodes, in queue order.
func Tree(s *scheduler.Scheduler) []Node {
	infos := s.Snapshot()
	nodes := make([]Node, 0, len(infos))
	for _, info := range infos {
		nodes = append(nodes, NewNode(info))
	}
	return nodes
}

func NewNode(info job.Info) Node {
	n := Node{
		ID:      info.ID,
		Label:   info.Name,
		Icon:    Icon(info.Status),
		Status:  info.Status,
		Command: info.Command,
	}
	if d, ok := info.Elapsed(); ok {
		n.Description = strconv.Itoa(int(math.Round(d.Seconds()))) + "s"
	}
	for _, c := range info.Children {
		n.Children = append(n.Children, NewNode(c))
	}
	return n
}

func Icon(s job.Status) string {
	switch s {
	case job.InProgress:
		return IconInProgress
	case job.Success:
		return IconSuccess
	case job.Error:
		return IconError
	case job.Cancelled:
		return IconCancelled
	default:
		return IconScheduled
	}
}
