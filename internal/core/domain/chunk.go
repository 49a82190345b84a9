package domain

// TelegramMessageLimit is the segment size used for outbound replies, below Telegram's 4096 cap.
const TelegramMessageLimit = 3500

// Chunk splits text into ordered segments of at most limit characters. Splitting happens
// on character boundaries only, so concatenating the result yields text unchanged.
// An empty text yields no segments.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = TelegramMessageLimit
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	segments := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := min(start+limit, len(runes))
		segments = append(segments, string(runes[start:end]))
	}

	return segments
}
