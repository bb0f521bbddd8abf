package domain

// Notice carries everything a delivery channel might render. Each channel's
// routing rule picks the fields relevant to its purpose and drops the rest.
type Notice struct {
	SourceName string
	Item       Item
	Summary    Summary
	Transcript string
	Digest     string
}

// DeliveryResult reports the outcome of one channel delivery attempt.
type DeliveryResult struct {
	Channel   string
	Delivered bool
	Permanent bool
	Error     string
}

// Delivered filters the channel names that succeeded.
func Delivered(results []DeliveryResult) []string {
	var names []string
	for _, r := range results {
		if r.Delivered {
			names = append(names, r.Channel)
		}
	}
	return names
}
