package spotify

import (
	"context"
	"net/url"
	"strings"
)

// TracksService handles catalog track lookups.
type TracksService struct {
	client *Client
}

// AudioFeatures returns audio features for up to MaxIDsPerRequest
// tracks. The result is positional: entries for unknown ids are nil.
func (s *TracksService) AudioFeatures(ctx context.Context, ids []string) ([]*AudioFeatures, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxIDsPerRequest {
		return nil, ErrTooManyIDs
	}

	var resp struct {
		AudioFeatures []*AudioFeatures `json:"audio_features"`
	}
	q := url.Values{"ids": {strings.Join(ids, ",")}}
	if err := s.client.get(ctx, "/audio-features", q, &resp); err != nil {
		return nil, err
	}
	return resp.AudioFeatures, nil
}
