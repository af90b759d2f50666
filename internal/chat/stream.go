package chat

import (
	"context"
	"strings"
	"time"

	"github.com/chaintalk-ai/chaintalk/internal/intent"
	"github.com/chaintalk-ai/chaintalk/internal/metrics"
)

// StreamEvent is one SSE-ready piece of a streamed turn.
type StreamEvent struct {
	Delta string
	Done  bool
	Err   error
}

// StreamChat runs one turn, delivering the reply incrementally. The
// conversation lock is held until the stream finishes so concurrent turns
// on the same thread stay ordered.
func (s *Service) StreamChat(ctx context.Context, userID, conversationID, message string) (string, <-chan StreamEvent, error) {
	conv, err := s.resolveConversation(ctx, userID, conversationID)
	if err != nil {
		return "", nil, err
	}

	detected := intent.Classify(message)
	metrics.ChatRequestsTotal.WithLabelValues(detected).Inc()

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		start := time.Now()

		lockErr := s.manager.WithConversationLock(conv.ID, func() error {
			switch detected {
			case intent.PriceQuery:
				reply := s.prices.Answer(ctx, message)
				emitWhole(ctx, out, reply)
				s.persistTurn(ctx, conv.ID, userID, message, reply, detected, false, time.Since(start))
				return nil
			case intent.NonWeb3:
				emitWhole(ctx, out, offTopicReply)
				s.persistTurn(ctx, conv.ID, userID, message, offTopicReply, detected, false, time.Since(start))
				return nil
			}

			cacheKey, cacheable := responseCacheKey(message)
			if cacheable {
				if hit, ok := s.cache.Get(ctx, cacheKey); ok {
					emitWhole(ctx, out, hit)
					s.persistTurn(ctx, conv.ID, userID, message, hit, detected, true, time.Since(start))
					return nil
				}
			}

			prompt := s.manager.BuildContext(ctx, conv.ID, message, s.systemPrompt)
			chunks, err := s.llm.Stream(ctx, prompt)
			if err != nil {
				return err
			}

			var full strings.Builder
			for chunk := range chunks {
				if chunk.Err != nil {
					return chunk.Err
				}
				full.WriteString(chunk.Content)
				select {
				case out <- StreamEvent{Delta: chunk.Content}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			reply := full.String()
			if cacheable && reply != "" {
				s.cache.Set(ctx, cacheKey, reply, s.responseCacheTTL)
			}
			s.persistTurn(ctx, conv.ID, userID, message, reply, detected, false, time.Since(start))
			return nil
		})

		if lockErr != nil {
			select {
			case out <- StreamEvent{Err: lockErr}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- StreamEvent{Done: true}:
		case <-ctx.Done():
		}
	}()

	return conv.ID, out, nil
}

// emitWhole streams an already-complete reply as a single delta.
func emitWhole(ctx context.Context, out chan<- StreamEvent, reply string) {
	select {
	case out <- StreamEvent{Delta: reply}:
	case <-ctx.Done():
	}
}
