// SPDX-License-Identifier: MIT

package bot

// Reason classifies why a conversation's flow ended short of delivery. Every
// reason is recoverable at the conversation level: the user may resubmit a
// link.
type Reason string

const (
	ReasonInvalidLink      Reason = "invalid_link"
	ReasonNoFormats        Reason = "no_formats_available"
	ReasonProbeTimeout     Reason = "probe_timeout"
	ReasonDownloadFailed   Reason = "download_failed"
	ReasonArtifactTooLarge Reason = "artifact_too_large"
	ReasonDeliveryFailed   Reason = "delivery_failed"
	ReasonSessionExpired   Reason = "session_expired"
)

var userMessages = map[Reason]string{
	ReasonInvalidLink:      "❌ That link could not be processed. Make sure it is public and valid.",
	ReasonNoFormats:        "❌ No downloadable formats were found for this media type.",
	ReasonProbeTimeout:     "❌ Analyzing the link took too long. Please try again.",
	ReasonDownloadFailed:   "❌ The download failed. Please try again later.",
	ReasonArtifactTooLarge: "❌ The file is too large to deliver over the chat.",
	ReasonDeliveryFailed:   "❌ Sending the file failed. Please try again.",
	ReasonSessionExpired:   "⌛ Session expired. Send the link again.",
}

// UserMessage returns the user-facing text for the reason.
func (r Reason) UserMessage() string {
	if msg, ok := userMessages[r]; ok {
		return msg
	}
	return userMessages[ReasonDownloadFailed]
}
