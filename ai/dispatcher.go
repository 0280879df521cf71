package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DispatchResult is the tagged result of a persona dispatch. Mode tells the
// caller which fields are populated: single modes fill Text/Raw, BOTH fills
// the therapist and friend pairs.
type DispatchResult struct {
	Mode Assistant

	// Single-persona result.
	Text string
	Raw  json.RawMessage

	// Dual-persona result.
	TherapistText string
	TherapistRaw  json.RawMessage
	FriendText    string
	FriendRaw     json.RawMessage
}

// Dispatcher decides the fan-out shape for a generation request from the
// selected assistant mode.
type Dispatcher struct {
	invoker Invoker
}

func NewDispatcher(invoker Invoker) *Dispatcher {
	return &Dispatcher{invoker: invoker}
}

// Dispatch runs one or two generation calls for the assembled content.
//
// THERAPIST and FRIEND issue a single call. BOTH issues two concurrent
// calls with the same content and joins both: if either leg fails or times
// out, the whole dispatch fails. A caller under the BOTH contract must
// never silently receive only one persona's answer.
func (d *Dispatcher) Dispatch(ctx context.Context, assistant Assistant, segments []Segment) (*DispatchResult, error) {
	switch assistant {
	case AssistantTherapist, AssistantFriend:
		persona, err := PersonaFor(assistant)
		if err != nil {
			return nil, err
		}
		result, err := d.invoker.GenerateContent(ctx, segments, persona)
		if err != nil {
			return nil, err
		}
		return &DispatchResult{Mode: assistant, Text: result.Text, Raw: result.Raw}, nil

	case AssistantBoth:
		return d.dispatchBoth(ctx, segments)

	default:
		return nil, fmt.Errorf("dispatch: unknown assistant %q", assistant)
	}
}

func (d *Dispatcher) dispatchBoth(ctx context.Context, segments []Segment) (*DispatchResult, error) {
	var therapist, friend *Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := d.invoker.GenerateContent(gctx, segments, therapistPersona)
		if err != nil {
			return fmt.Errorf("therapist: %w", err)
		}
		therapist = result
		return nil
	})
	g.Go(func() error {
		result, err := d.invoker.GenerateContent(gctx, segments, friendPersona)
		if err != nil {
			return fmt.Errorf("friend: %w", err)
		}
		friend = result
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Debug("dual dispatch failed", "error", err)
		return nil, err
	}

	return &DispatchResult{
		Mode:          AssistantBoth,
		TherapistText: therapist.Text,
		TherapistRaw:  therapist.Raw,
		FriendText:    friend.Text,
		FriendRaw:     friend.Raw,
	}, nil
}
