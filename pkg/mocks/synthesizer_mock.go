package mocks

import (
	"context"

	"github.com/dukex/ivrflow/pkg/audio"
	"github.com/stretchr/testify/mock"
)

// MockSynthesizer is a mock implementation of audio.Synthesizer.
type MockSynthesizer struct {
	mock.Mock
}

var _ audio.Synthesizer = (*MockSynthesizer)(nil)

func (m *MockSynthesizer) Synthesize(ctx context.Context, req audio.SynthesisRequest) (*audio.Clip, error) {
	args := m.Called(ctx, req)

	clip, _ := args.Get(0).(*audio.Clip)

	return clip, args.Error(1)
}
