// Package webhooks delivers analytics alerts to an operator-configured HTTP endpoint.
//
// # Events
//
//	aggregate.missing    completed days with no daily aggregate row
//	success_rate.low     a day whose tool success rate fell below the threshold
//
// # Usage
//
//	notifier := webhooks.NewNotifier(url, secret, logger)
//	alerter.SetNotifier(notifier)
//
// Verify signature (receiver side):
//
//	sig := r.Header.Get(webhooks.HeaderSignature)
//	if !webhooks.VerifySignature(body, sig, secret) {
//		return errors.New("invalid signature")
//	}
//
// # Retry Policy
//
// Exponential backoff: 1s, 2s, 4s
// Max attempts: 4
// Timeout per attempt: 10s
package webhooks
