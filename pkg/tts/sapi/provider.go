// Package sapi implements tts.Provider with the Windows SAPI5 automation objects.
// On other platforms the OLE calls fail and the provider reports no voices.
package sapi

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"schemeaccess/pkg/tts"
)

// SAPI stream mode for SpFileStream.Open.
const ssfmCreateForWrite = 3

// Provider implements tts.Provider using Windows SAPI5 via OLE.
type Provider struct {
	voiceID string
	mu      sync.Mutex
}

// NewProvider creates a SAPI5 provider. voiceID may be empty for the system voice.
func NewProvider(voiceID string) *Provider {
	return &Provider{voiceID: voiceID}
}

// Synthesize renders req into a .wav file.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request, outputPath string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := ole.CoInitialize(0); err == nil {
		defer ole.CoUninitialize()
	}

	voice, err := createDispatch("SAPI.SpVoice")
	if err != nil {
		return "", err
	}
	defer voice.Release()

	voiceID := req.Voice
	if voiceID == "" {
		voiceID = p.voiceID
	}
	if voiceID != "" {
		selectVoice(voice, voiceID)
	}
	if _, err := oleutil.PutProperty(voice, "Rate", sapiRate(req.Rate)); err != nil {
		return "", fmt.Errorf("failed to set Rate: %w", err)
	}
	if _, err := oleutil.PutProperty(voice, "Volume", sapiVolume(req.Volume)); err != nil {
		return "", fmt.Errorf("failed to set Volume: %w", err)
	}

	stream, err := createDispatch("SAPI.SpFileStream")
	if err != nil {
		return "", err
	}
	defer stream.Release()

	fullPath := outputPath
	if !strings.HasSuffix(strings.ToLower(fullPath), ".wav") {
		fullPath += ".wav"
	}
	if _, err := oleutil.CallMethod(stream, "Open", fullPath, ssfmCreateForWrite, false); err != nil {
		return "", fmt.Errorf("stream Open failed: %w", err)
	}
	defer func() {
		_, _ = oleutil.CallMethod(stream, "Close")
	}()

	if _, err := oleutil.PutPropertyRef(voice, "AudioOutputStream", stream); err != nil {
		return "", fmt.Errorf("failed to set AudioOutputStream: %w", err)
	}

	if _, err := oleutil.CallMethod(voice, "Speak", req.Text, 0); err != nil {
		tts.Log("SAPI", req.Text, 0, err)
		return "", fmt.Errorf("speak failed: %w", err)
	}

	tts.Log("SAPI", req.Text, 200, nil)
	return "wav", nil
}

// Voices lists installed SAPI voices.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ole.CoInitialize(0); err == nil {
		defer ole.CoUninitialize()
	}

	voice, err := createDispatch("SAPI.SpVoice")
	if err != nil {
		return nil, err
	}
	defer voice.Release()

	tokensVar, err := oleutil.CallMethod(voice, "GetVoices")
	if err != nil {
		return nil, fmt.Errorf("failed to get voices collection: %w", err)
	}
	tokens := tokensVar.ToIDispatch()
	if tokens == nil {
		return nil, fmt.Errorf("voices collection is nil")
	}
	defer tokens.Release()

	var voices []tts.Voice
	_ = oleutil.ForEach(tokens, func(v *ole.VARIANT) error {
		item := v.ToIDispatch()
		if item == nil {
			return nil
		}
		defer item.Release()

		idVar, idErr := oleutil.CallMethod(item, "GetId")
		descVar, descErr := oleutil.CallMethod(item, "GetDescription", int32(0))
		if idErr == nil && descErr == nil {
			voices = append(voices, tts.Voice{ID: idVar.ToString(), Name: descVar.ToString()})
		}
		return nil
	})
	return voices, nil
}

func createDispatch(progID string) (*ole.IDispatch, error) {
	unknown, err := oleutil.CreateObject(progID)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", progID, err)
	}
	defer unknown.Release()

	disp, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("QueryInterface %s failed: %w", progID, err)
	}
	return disp, nil
}

func selectVoice(voice *ole.IDispatch, voiceID string) {
	tokensVar, err := oleutil.CallMethod(voice, "GetVoices", "", "")
	if err != nil {
		return
	}
	tokens := tokensVar.ToIDispatch()
	if tokens == nil {
		return
	}
	defer tokens.Release()

	_ = oleutil.ForEach(tokens, func(v *ole.VARIANT) error {
		item := v.ToIDispatch()
		if item == nil {
			return nil
		}
		defer item.Release()
		idVar, _ := oleutil.CallMethod(item, "GetId")
		if idVar != nil && idVar.ToString() == voiceID {
			_, _ = oleutil.PutPropertyRef(voice, "Voice", item)
		}
		return nil
	})
}

// sapiRate maps a speed multiplier onto SAPI's -10..10 scale,
// where each 10 steps roughly doubles or halves the speed.
func sapiRate(rate float64) int32 {
	if rate <= 0 || math.IsNaN(rate) {
		return 0
	}
	r := math.Round(math.Log2(rate) * 10)
	return int32(math.Max(-10, math.Min(10, r)))
}

// sapiVolume maps 0..1 onto SAPI's 0..100.
func sapiVolume(volume float64) int32 {
	if math.IsNaN(volume) {
		return 100
	}
	return int32(math.Round(math.Max(0, math.Min(1, volume)) * 100))
}
