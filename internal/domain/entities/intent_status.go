package entities

import "fmt"

// IntentStatus represents the status of a deposit intent
type IntentStatus string

const (
	IntentStatusPending   IntentStatus = "pending"
	IntentStatusCompleted IntentStatus = "completed"
	IntentStatusCancelled IntentStatus = "cancelled"
)

// ValidIntentStatuses contains all valid intent statuses
var ValidIntentStatuses = map[IntentStatus]bool{
	IntentStatusPending:   true,
	IntentStatusCompleted: true,
	IntentStatusCancelled: true,
}

// ValidIntentTransitions defines allowed status transitions. Both outgoing
// transitions from pending are terminal and mutually exclusive; the store
// enforces exclusivity with a conditional update on status='pending'.
var ValidIntentTransitions = map[IntentStatus][]IntentStatus{
	IntentStatusPending:   {IntentStatusCompleted, IntentStatusCancelled},
	IntentStatusCompleted: {},
	IntentStatusCancelled: {},
}

// IsValid checks if the status is a valid intent status
func (s IntentStatus) IsValid() bool {
	return ValidIntentStatuses[s]
}

// CanTransitionTo checks if transition to new status is allowed
func (s IntentStatus) CanTransitionTo(newStatus IntentStatus) bool {
	allowed, exists := ValidIntentTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusCompleted || s == IntentStatusCancelled
}

// IsPending returns true if the intent is still awaiting a bank transfer
func (s IntentStatus) IsPending() bool {
	return s == IntentStatusPending
}

// ValidateTransition validates and returns an error if the transition is invalid
func (s IntentStatus) ValidateTransition(newStatus IntentStatus) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("invalid intent status: %s", newStatus)
	}
	if !s.CanTransitionTo(newStatus) {
		return fmt.Errorf("invalid status transition from %s to %s", s, newStatus)
	}
	return nil
}
