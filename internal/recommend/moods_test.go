package recommend

import (
	"errors"
	"testing"
)

func TestParseEmotion(t *testing.T) {
	tests := []struct {
		input   string
		want    Emotion
		wantErr error
	}{
		{"happy", EmotionHappy, nil},
		{"  Sad ", EmotionSad, nil},
		{"DISGUST", EmotionDisgust, nil},
		{"surprise", EmotionSurprise, nil},
		{"bored", "", ErrUnknownEmotion},
		{"", "", ErrUnknownEmotion},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEmotion(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseEmotion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseEmotion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEmotion_Tags(t *testing.T) {
	for emotion, tags := range moodTags {
		if len(tags) == 0 {
			t.Errorf("%s has no tags", emotion)
		}
	}

	tags := EmotionAngry.Tags()
	if len(tags) != 2 || tags[0] != "rock" || tags[1] != "metal" {
		t.Errorf("angry tags = %v, want [rock metal]", tags)
	}

	// Callers must not be able to mutate the mapping.
	tags[0] = "jazz"
	if EmotionAngry.Tags()[0] != "rock" {
		t.Error("Tags() returned the shared slice")
	}

	if Emotion("bored").Tags() != nil {
		t.Error("unknown emotion returned tags")
	}
}
