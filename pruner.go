package prerecord

// Pruning keeps the buffered duration inside the configured budget by
// evicting whole GOPs from the head of the queue. A GOP is never
// split, and at least two GOPs are retained so that a single GOP
// spanning more than the whole budget does not empty the buffer.

// overBudget reports whether the buffered duration reached the budget.
// A zero budget means unlimited.
func (l *Loop) overBudget() bool {
	return l.maxBuffered > 0 && l.tl.bufferedDuration() >= l.maxBuffered
}

// shouldEvict reports whether pruning may remove a GOP: over budget
// with strictly more than two GOPs queued.
func (l *Loop) shouldEvict() bool {
	return l.overBudget() && l.q.gopCount() > 2
}

// prune evicts oldest GOPs until the budget is met, the two-GOP floor
// is reached, or eviction stops making progress.
func (l *Loop) prune() {
	for l.shouldEvict() {
		before := l.q.gopCount()
		l.evictOldestGOP()
		if l.q.gopCount() >= before {
			break
		}
	}
}

// evictOldestGOP removes the GOP at the head of the queue in two
// phases. Seek: leading events are dropped, and any leading frame that
// is not a valid GOP head (not a keyframe, or carrying a GOP id other
// than the recorded oldest) is force-dropped, recovering from an
// upstream contract violation. Evict: every item belonging to the
// oldest GOP id is dropped until a frame from a newer GOP appears;
// that frame becomes the new head and its id the new oldest.
func (l *Loop) evictOldestGOP() {
	var framesDropped, eventsDropped uint64

	atHead := false
	for !atHead {
		it, ok := l.q.peekHead()
		if !ok {
			break
		}
		if it.event != nil {
			l.dropHead()
			eventsDropped++
			continue
		}
		drop := false
		if !it.isKeyframe {
			l.logger.Warn("expected a keyframe at the head of the queue",
				"gop_id", it.gopID)
			drop = true
		}
		if it.gopID != l.q.oldestGOPID {
			l.logger.Warn("unexpected GOP id at the head of the queue",
				"gop_id", it.gopID, "want", l.q.oldestGOPID)
			drop = true
		}
		if drop {
			l.dropHead()
			framesDropped++
		} else {
			atHead = true
		}
	}

	if l.q.empty() {
		l.logger.Warn("queue drained while seeking a GOP boundary")
	} else {
		for {
			it, ok := l.q.peekHead()
			if !ok {
				break
			}
			if it.event != nil {
				l.dropHead()
				eventsDropped++
				continue
			}
			if it.gopID == l.q.oldestGOPID {
				l.dropHead()
				framesDropped++
				continue
			}
			if !it.isKeyframe {
				l.logger.Warn("GOP id changed on a non-keyframe",
					"gop_id", it.gopID)
			}
			l.q.oldestGOPID = it.gopID
			break
		}
	}

	l.stats.DroppedGOPs++
	l.stats.DroppedFrames += framesDropped
	l.stats.DroppedEvents += eventsDropped
	l.logger.Debug("evicted oldest GOP",
		"frames", framesDropped,
		"events", eventsDropped,
		"queued_gops", l.q.gopCount(),
		"buffered", l.tl.bufferedDuration())
}

// dropHead dequeues the head item and releases its handle.
func (l *Loop) dropHead() {
	it, ok := l.q.dequeue()
	if !ok {
		return
	}
	switch {
	case it.frame != nil:
		it.frame.Release()
	case it.event != nil:
		it.event.Release()
	}
}
