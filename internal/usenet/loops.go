package usenet

import (
	"context"
	"strings"
	"time"
)

// inactivityLoop implements §4.6's "Inactivity cleanup" background loop.
func (c *Controller) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.InactivityInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.runInactivityCleanup(ctx)
		}
	}
}

func (c *Controller) runInactivityCleanup(ctx context.Context) {
	c.mu.RLock()
	streams := make([]*ActiveStream, 0, len(c.streams))
	for _, s := range c.streams {
		streams = append(streams, s)
	}
	c.mu.RUnlock()

	now := time.Now()
	for _, s := range streams {
		if s.Personal {
			continue
		}
		if now.Sub(s.LastAccessTs()) <= c.opts.InactivityTimeout {
			continue
		}

		state := s.Handle.State()
		if (state == StateDownloading || state == StatePaused) && s.Handle.DeleteOnStreamStop() {
			if err := c.downloader.QueueDelete(ctx, s.Handle.DownloadID); err != nil {
				c.logger.WarnContext(ctx, "inactivity cleanup delete failed", "download_id", s.Handle.DownloadID, "error", err)
				continue
			}
			c.removeHandle(s.Handle.DownloadID)
		}
		// Completed files are otherwise left in place untouched.
	}
}

// extractionLoop implements §4.6's "Extraction monitor" background loop: the
// pause/resume guardrail that prevents the client outrunning the extraction
// frontier.
func (c *Controller) extractionLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.ExtractionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.runExtractionMonitor(ctx)
		}
	}
}

func (c *Controller) runExtractionMonitor(ctx context.Context) {
	c.mu.RLock()
	streams := make([]*ActiveStream, 0, len(c.streams))
	for _, s := range c.streams {
		streams = append(streams, s)
	}
	c.mu.RUnlock()

	for _, s := range streams {
		if s.Personal {
			continue
		}
		if s.Handle.State() != StatePaused {
			continue
		}

		downloadPercent := s.Handle.PercentComplete() / 100
		playbackPercent := s.PlaybackPercent()

		if playbackPercent > downloadPercent-c.opts.ExtractionGuardPct {
			if err := c.ResumeDownload(ctx, s.Handle.DownloadID); err != nil {
				c.logger.WarnContext(ctx, "extraction monitor resume failed", "download_id", s.Handle.DownloadID, "error", err)
			}
		}
	}
}

// autocleanLoop implements §4.6's "Autoclean" background loop.
func (c *Controller) autocleanLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.AutocleanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.runAutoclean(ctx)
		}
	}
}

func (c *Controller) runAutoclean(ctx context.Context) {
	entries, err := c.files.List(ctx, "")
	if err != nil {
		c.logger.WarnContext(ctx, "autoclean listing failed", "error", err)
		return
	}

	cutoff := time.Now().AddDate(0, 0, -c.opts.AutocleanAgeDays)
	for _, e := range entries {
		if !e.Completed || e.ModifiedAt.After(cutoff) {
			continue
		}
		if err := c.files.Delete(ctx, e.Path); err != nil {
			c.logger.WarnContext(ctx, "autoclean delete failed", "path", e.Path, "error", err)
		}
	}
}

// orphanSweep implements §4.6's "Orphan sweep" background loop: runs once at
// startup, resuming any paused download with no associated active stream.
func (c *Controller) orphanSweep(ctx context.Context) {
	queue, err := c.downloader.GetQueue(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "orphan sweep queue fetch failed", "error", err)
		return
	}

	c.mu.RLock()
	hasStream := make(map[string]bool, len(c.streams))
	for id := range c.streams {
		hasStream[id] = true
	}
	c.mu.RUnlock()

	for _, slot := range queue.Slots {
		if !strings.EqualFold(slot.Status, "paused") {
			continue
		}
		if hasStream[slot.NzoID] {
			continue
		}
		if err := c.downloader.QueueResume(ctx, slot.NzoID); err != nil {
			c.logger.WarnContext(ctx, "orphan sweep resume failed", "nzo_id", slot.NzoID, "error", err)
		}
	}
}
