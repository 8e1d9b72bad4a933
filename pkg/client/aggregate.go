package client

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Platforms lists the platforms the aggregator queries by default
var Platforms = []string{"linkedin", "facebook", "twitter"}

// AllStatuses checks every platform concurrently and waits for all of them.
// A failing check degrades to disconnected for that platform only; one
// platform's failure never hides another's result. Without a session it
// short-circuits to all-disconnected with zero network calls.
func (c *Client) AllStatuses(ctx context.Context, platforms ...string) map[string]*PlatformStatus {
	if len(platforms) == 0 {
		platforms = Platforms
	}

	statuses := make(map[string]*PlatformStatus, len(platforms))
	if !c.hasSession() {
		for _, platform := range platforms {
			statuses[platform] = &PlatformStatus{Platform: platform, Connected: false}
		}
		return statuses
	}

	results := make([]*PlatformStatus, len(platforms))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, platform := range platforms {
		group.Go(func() error {
			status, err := c.Platform(platform).Status(groupCtx)
			if err != nil {
				status = &PlatformStatus{Platform: platform, Connected: false}
			}
			results[i] = status
			return nil
		})
	}
	_ = group.Wait()

	for i, platform := range platforms {
		statuses[platform] = results[i]
	}
	return statuses
}
