package ctl

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/hid"
	"github.com/oshokin/oneshot-layer/internal/logger"
)

type stateReader interface {
	GetState(ctx context.Context) (*domain.Status, error)
}

type emissionLister interface {
	ListEmissions(ctx context.Context, limit uint32) ([]hid.Emission, error)
}

func printState(ctx context.Context, client stateReader, out io.Writer) error {
	status, err := client.GetState(ctx)
	if err != nil {
		return err
	}

	_, err = io.WriteString(out, FormatStatus(status))

	return err
}

func printEmissions(ctx context.Context, client emissionLister, limit uint32, out io.Writer) error {
	emissions, err := client.ListEmissions(ctx, limit)
	if err != nil {
		return err
	}

	for _, e := range emissions {
		if _, err := fmt.Fprintln(out, FormatEmission(e)); err != nil {
			return err
		}
	}

	return nil
}

// watch prints the active layers whenever they change.
func watch(ctx context.Context, client stateReader, interval time.Duration, out io.Writer) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string

	for {
		status, err := client.GetState(ctx)
		if err != nil {
			logger.ErrorKV(ctx, "GetState failed", "error", err)
		} else if line := formatLayers(status); line != last {
			last = line

			if _, err := fmt.Fprintln(out, line); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// FormatStatus renders the status as human readable text.
func FormatStatus(s *domain.Status) string {
	var b strings.Builder

	fmt.Fprintf(&b, "layers: %s\n", formatLayers(s))

	if len(s.HeldKeys) > 0 {
		keys := make([]string, 0, len(s.HeldKeys))
		for _, code := range s.HeldKeys {
			keys = append(keys, code.String())
		}

		fmt.Fprintf(&b, "held: %s\n", strings.Join(keys, " "))
	}

	for _, state := range s.Behaviors {
		fmt.Fprintf(&b, "%s (%s, timeout %s): ", state.Name, state.Policy, formatTimeout(state.Timeout))

		if !state.Active {
			b.WriteString("idle\n")

			continue
		}

		fmt.Fprintf(&b, "armed %s from position %d",
			layerName(s.LayerNames, state.TargetLayer), state.SourcePosition)

		if state.TimerPending {
			fmt.Fprintf(&b, ", expires %s", state.Deadline.Local().Format(time.TimeOnly+".000"))
		}

		b.WriteString("\n")
	}

	return b.String()
}

// FormatEmission renders one emission as a single line.
func FormatEmission(e hid.Emission) string {
	direction := "up"
	if e.Pressed {
		direction = "down"
	}

	timestamp := "-"
	if !e.Timestamp.IsZero() {
		timestamp = e.Timestamp.Local().Format(time.TimeOnly + ".000")
	}

	return fmt.Sprintf("%s %-4s %-16s position %d layer %d", timestamp, direction, e.Keycode, e.Position, e.Layer)
}

func formatLayers(s *domain.Status) string {
	names := make([]string, 0, len(s.ActiveLayers))
	for _, id := range s.ActiveLayers {
		names = append(names, layerName(s.LayerNames, id))
	}

	return strings.Join(names, " ")
}

func formatTimeout(d time.Duration) string {
	if d == 0 {
		return "none"
	}

	return d.String()
}

func layerName(names []string, id keyboard.LayerID) string {
	if int(id) < len(names) && names[id] != "" {
		return names[id]
	}

	return fmt.Sprintf("#%d", id)
}
