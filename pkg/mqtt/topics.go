package mqtt

import (
	"fmt"
	"strings"
)

// Topic constants for the screentime pipeline
const (
	// Raw device topics (input)
	TopicRawScreen    = "automation/raw/screen/+"
	TopicRawHeartbeat = "automation/raw/heartbeat/+"

	// Batch trigger (input) and completion notices (output)
	TopicProcessTrigger = "automation/screentime/process"
	TopicProcessedBase  = "automation/screentime/processed"
)

// RawScreenTopic constructs the raw screen topic for a subject
// Pattern: automation/raw/screen/{subject}
func RawScreenTopic(subject string) string {
	return fmt.Sprintf("automation/raw/screen/%s", subject)
}

// RawHeartbeatTopic constructs the raw heartbeat topic for a subject
// Pattern: automation/raw/heartbeat/{subject}
func RawHeartbeatTopic(subject string) string {
	return fmt.Sprintf("automation/raw/heartbeat/%s", subject)
}

// ProcessedTopic constructs the completion topic for a subject
// Pattern: automation/screentime/processed/{subject}
func ProcessedTopic(subject string) string {
	return fmt.Sprintf("%s/%s", TopicProcessedBase, subject)
}

// ParseRawTopic splits automation/raw/{kind}/{subject} into its kind and subject
func ParseRawTopic(topic string) (kind, subject string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "automation" || parts[1] != "raw" {
		return "", "", fmt.Errorf("invalid topic format: %s (expected automation/raw/{kind}/{subject})", topic)
	}
	if parts[3] == "" {
		return "", "", fmt.Errorf("invalid topic format: %s (empty subject)", topic)
	}
	return parts[2], parts[3], nil
}
