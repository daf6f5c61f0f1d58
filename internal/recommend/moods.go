package recommend

import (
	"fmt"
	"strings"
)

// Emotion is a facial-expression class reported by the detection model.
type Emotion string

const (
	EmotionHappy    Emotion = "happy"
	EmotionSad      Emotion = "sad"
	EmotionAngry    Emotion = "angry"
	EmotionNeutral  Emotion = "neutral"
	EmotionFear     Emotion = "fear"
	EmotionSurprise Emotion = "surprise"
	EmotionDisgust  Emotion = "disgust"
)

// moodTags maps each emotion to the Last.fm tags whose charts are sampled, in order.
var moodTags = map[Emotion][]string{
	EmotionHappy:    {"happy", "dance", "pop"},
	EmotionSad:      {"sad", "acoustic", "melancholic"},
	EmotionAngry:    {"rock", "metal"},
	EmotionNeutral:  {"chill", "ambient"},
	EmotionFear:     {"calm", "soothing"},
	EmotionSurprise: {"upbeat", "indie"},
	EmotionDisgust:  {"dark", "industrial"},
}

// ParseEmotion normalises s and returns ErrUnknownEmotion if it has no tag mapping.
func ParseEmotion(s string) (Emotion, error) {
	e := Emotion(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := moodTags[e]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEmotion, s)
	}
	return e, nil
}

// Tags returns the Last.fm tags for the emotion, or nil if it is unknown.
func (e Emotion) Tags() []string {
	tags := moodTags[e]
	if tags == nil {
		return nil
	}
	return append([]string(nil), tags...)
}
