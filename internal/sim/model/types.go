package model

import (
	"fmt"
	"strings"
)

// ActorID indexes the dense actor id space [0, N).
type ActorID int

type EmotionType int

const (
	Happy EmotionType = iota
	Calm
	Satisfied
	Brave
	Extroverted

	EmotionCount = 5
)

var emotionNames = [EmotionCount]string{"happy", "calm", "satisfied", "brave", "extroverted"}

// Names used by narrative text for the negative side of each emotion.
var emotionNegativeNames = [EmotionCount]string{"sad", "stressed", "unfulfilled", "fearful", "shy"}

func (t EmotionType) String() string {
	if t < 0 || int(t) >= EmotionCount {
		return fmt.Sprintf("emotion(%d)", int(t))
	}
	return emotionNames[t]
}

// Adjective returns the positive or negative name of the emotion for a value.
func (t EmotionType) Adjective(value float64) string {
	if t < 0 || int(t) >= EmotionCount {
		return t.String()
	}
	if value < 0 {
		return emotionNegativeNames[t]
	}
	return emotionNames[t]
}

func ParseEmotionType(s string) (EmotionType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range emotionNames {
		if n == s {
			return EmotionType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown emotion type %q", s)
}

type RelationshipType int

const (
	Love RelationshipType = iota
	Attraction
	Friendship
	Anger
	Protective

	RelationshipCount = 5
)

var relationshipNames = [RelationshipCount]string{"love", "attraction", "friendship", "anger", "protective"}

var relationshipPositivePhrases = [RelationshipCount]string{"love for", "attraction for", "friendship for", "anger for", "protective of"}
var relationshipNegativePhrases = [RelationshipCount]string{"hate for", "disgust for", "animosity for", "comfortable with", "power over"}

func (t RelationshipType) String() string {
	if t < 0 || int(t) >= RelationshipCount {
		return fmt.Sprintf("relationship(%d)", int(t))
	}
	return relationshipNames[t]
}

// Phrase returns the narrative phrase for the relationship at value, e.g. "hate for".
func (t RelationshipType) Phrase(value float64) string {
	if t < 0 || int(t) >= RelationshipCount {
		return t.String()
	}
	if value < 0 {
		return relationshipNegativePhrases[t]
	}
	return relationshipPositivePhrases[t]
}

func ParseRelationshipType(s string) (RelationshipType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range relationshipNames {
		if n == s {
			return RelationshipType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown relationship type %q", s)
}

type GoalType int

const (
	GoalWealth GoalType = iota
	GoalAcceptance
	GoalRelationship
	GoalHedonism
	GoalPower

	GoalCount = 5

	// GoalAny is the requirement wildcard; it is never an actor's goal.
	GoalAny GoalType = -1
)

var goalNames = [GoalCount]string{"wealth", "acceptance", "relationship", "hedonism", "power"}

func (t GoalType) String() string {
	if t == GoalAny {
		return "any"
	}
	if t < 0 || int(t) >= GoalCount {
		return fmt.Sprintf("goal(%d)", int(t))
	}
	return goalNames[t]
}

// ParseGoalType maps "" and "any" to GoalAny.
func ParseGoalType(s string) (GoalType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "any" {
		return GoalAny, nil
	}
	for i, n := range goalNames {
		if n == s {
			return GoalType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown goal type %q", s)
}

type ContextType int

const (
	ContextCourse ContextType = iota
	ContextFreetime

	ContextCount = 2

	// ContextAny is the requirement wildcard.
	ContextAny ContextType = -1
)

var contextNames = [ContextCount]string{"course", "freetime"}

func (t ContextType) String() string {
	if t == ContextAny {
		return "any"
	}
	if t < 0 || int(t) >= ContextCount {
		return fmt.Sprintf("context(%d)", int(t))
	}
	return contextNames[t]
}

// ParseContextType maps "" and "any" to ContextAny.
func ParseContextType(s string) (ContextType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "any" {
		return ContextAny, nil
	}
	for i, n := range contextNames {
		if n == s {
			return ContextType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown context type %q", s)
}

// Clamp limits v to the scalar range [-1, 1].
func Clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
