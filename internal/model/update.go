package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidField marks an update field that failed structural validation
var ErrInvalidField = errors.New("invalid field")

// Update is a partial session document. Nil fields are absent and leave the
// stored value untouched.
type Update struct {
	RoomCode             *string   `json:"roomCode,omitempty"`
	Players              *[]Player `json:"players,omitempty"`
	Teams                *[]Team   `json:"teams,omitempty"`
	Mode                 *Mode     `json:"mode,omitempty"`
	Length               *Length   `json:"length,omitempty"`
	Rounds               *[]Round  `json:"rounds,omitempty"`
	CurrentRoundIndex    *int      `json:"currentRoundIndex,omitempty"`
	CurrentQuestionIndex *int      `json:"currentQuestionIndex,omitempty"`
	Status               *Status   `json:"status,omitempty"`
	QuizMasterEnabled    *bool     `json:"quizMasterEnabled,omitempty"`
	ShowAnswer           *bool     `json:"showAnswer,omitempty"`
	TimeLeft             *int      `json:"timeLeft,omitempty"`
	CurrentAnswerID      *string   `json:"currentAnswerId,omitempty"`
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

// IsEmpty reports whether the update carries no fields
func (u Update) IsEmpty() bool {
	return u == Update{}
}

// Merge overlays the fields present in other onto u
func (u Update) Merge(other Update) Update {
	if other.RoomCode != nil {
		u.RoomCode = other.RoomCode
	}
	if other.Players != nil {
		u.Players = other.Players
	}
	if other.Teams != nil {
		u.Teams = other.Teams
	}
	if other.Mode != nil {
		u.Mode = other.Mode
	}
	if other.Length != nil {
		u.Length = other.Length
	}
	if other.Rounds != nil {
		u.Rounds = other.Rounds
	}
	if other.CurrentRoundIndex != nil {
		u.CurrentRoundIndex = other.CurrentRoundIndex
	}
	if other.CurrentQuestionIndex != nil {
		u.CurrentQuestionIndex = other.CurrentQuestionIndex
	}
	if other.Status != nil {
		u.Status = other.Status
	}
	if other.QuizMasterEnabled != nil {
		u.QuizMasterEnabled = other.QuizMasterEnabled
	}
	if other.ShowAnswer != nil {
		u.ShowAnswer = other.ShowAnswer
	}
	if other.TimeLeft != nil {
		u.TimeLeft = other.TimeLeft
	}
	if other.CurrentAnswerID != nil {
		u.CurrentAnswerID = other.CurrentAnswerID
	}
	return u
}

// MarshalJSON encodes present fields only. A present nil slice is sent as an
// empty list so it is not mistaken for an absent field on the other side.
func (u Update) MarshalJSON() ([]byte, error) {
	raw, err := u.rawFields()
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

func (u Update) rawFields() (map[string]json.RawMessage, error) {
	type plain Update
	data, err := json.Marshal(plain(u))
	if err != nil {
		return nil, err
	}
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		if string(v) == "null" {
			raw[k] = json.RawMessage("[]")
		}
	}
	return raw, nil
}

// Fields encodes each present field separately, keyed by its document name
func (u Update) Fields() (map[string]string, error) {
	raw, err := u.rawFields()
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = string(v)
	}
	return fields, nil
}

// DecodeFields rebuilds an update from per-field JSON values. Unknown keys are
// ignored; a malformed value is skipped and reported while the rest decode.
func DecodeFields(fields map[string]string) (Update, []error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var u Update
	var errs []error
	for _, k := range keys {
		obj, err := json.Marshal(map[string]json.RawMessage{k: json.RawMessage(fields[k])})
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalidField, k, err))
			continue
		}
		var part Update
		if err := json.Unmarshal(obj, &part); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalidField, k, err))
			continue
		}
		u = u.Merge(part)
	}
	return u, errs
}

// Sanitize drops structurally invalid fields and reports why each was dropped.
// The remaining fields are safe to merge.
func (u Update) Sanitize() (Update, []error) {
	var errs []error
	drop := func(field string, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidField, field, fmt.Sprintf(format, args...)))
	}

	if u.Status != nil && !u.Status.Valid() {
		drop("status", "unknown status %q", *u.Status)
		u.Status = nil
	}
	if u.Mode != nil && !u.Mode.Valid() {
		drop("mode", "unknown mode %q", *u.Mode)
		u.Mode = nil
	}
	if u.Length != nil && !u.Length.Valid() {
		drop("length", "unknown length %d", *u.Length)
		u.Length = nil
	}
	if u.TimeLeft != nil && *u.TimeLeft < 0 {
		drop("timeLeft", "negative value %d", *u.TimeLeft)
		u.TimeLeft = nil
	}
	if u.CurrentRoundIndex != nil && *u.CurrentRoundIndex < -1 {
		drop("currentRoundIndex", "out of range %d", *u.CurrentRoundIndex)
		u.CurrentRoundIndex = nil
	}
	if u.CurrentQuestionIndex != nil && *u.CurrentQuestionIndex < -1 {
		drop("currentQuestionIndex", "out of range %d", *u.CurrentQuestionIndex)
		u.CurrentQuestionIndex = nil
	}
	if u.Rounds != nil {
		if err := validateRounds(*u.Rounds); err != nil {
			drop("rounds", "%v", err)
			u.Rounds = nil
		}
	}
	if u.Players != nil {
		for i, p := range *u.Players {
			if p.ID == "" {
				drop("players", "player %d has no id", i)
				u.Players = nil
				break
			}
		}
	}
	if u.Teams != nil {
		for i, t := range *u.Teams {
			if t.ID == "" {
				drop("teams", "team %d has no id", i)
				u.Teams = nil
				break
			}
		}
	}
	return u, errs
}

func validateRounds(rounds []Round) error {
	for i, r := range rounds {
		if len(r.Questions) == 0 {
			return fmt.Errorf("round %d has no questions", i)
		}
		for j, q := range r.Questions {
			if q.Timer <= 0 {
				return fmt.Errorf("round %d question %d has timer %d", i, j, q.Timer)
			}
			if n := len(q.Options); n != 0 && n != OptionCount {
				return fmt.Errorf("round %d question %d has %d options", i, j, n)
			}
		}
	}
	return nil
}
