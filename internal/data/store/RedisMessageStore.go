package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/data/redisStore"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/jobModel"
	"github.com/akolanti/docqa/pkg/logger_i"
)

const (
	chatSessionPrefix = "chat_session:"
	chatTurnsPrefix   = "chat_turns:"
)

type RedisMessageStore struct {
	store  *redisStore.Store
	keep   int
	logger *logger_i.Logger
}

func NewRedisMessageStore(store *redisStore.Store) *RedisMessageStore {
	return &RedisMessageStore{
		store:  store,
		keep:   config.ChatHistoryLength,
		logger: logger_i.NewLogger("MessageStore"),
	}
}

func (s *RedisMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chatId", chatId)
	found, err := s.store.Exists(ctx, chatSessionPrefix+chatId)
	if err != nil {
		log.Error("Failed to check if chatId exists", "error", err)
		return false
	}
	return found
}

// ChatOwner reads the owner kept as the value of the session key.
func (s *RedisMessageStore) ChatOwner(ctx context.Context, chatId string) (string, bool) {
	owner, err := s.store.Get(ctx, chatSessionPrefix+chatId)
	if err != nil {
		if !s.store.IsNil(err) {
			s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("Failed to read chat owner", "chatId", chatId, "error", err)
		}
		return "", false
	}
	return owner, true
}

func (s *RedisMessageStore) InitNewChat(ctx context.Context, id, owner string) error {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chatId", id)
	log.Debug("Initializing new chat")
	if err := s.store.Del(ctx, chatTurnsPrefix+id); err != nil {
		return err
	}
	return s.store.Set(ctx, chatSessionPrefix+id, owner, config.RedisMessageStoreTTL)
}

func (s *RedisMessageStore) TrySaveChat(ctx context.Context, id string, turn jobModel.ChatTurn) error {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chatId", id)
	if !s.ValidateChatId(ctx, id) {
		return fmt.Errorf("chat %s: %w", id, commonModels.ErrNotFound)
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	if err := s.store.ListAppend(ctx, chatTurnsPrefix+id, data, int64(s.keep), config.RedisMessageStoreTTL); err != nil {
		log.Error("Error saving chat", "error", err)
		return err
	}
	// keep the session alive as long as its turns
	if err := s.store.Expire(ctx, chatSessionPrefix+id, config.RedisMessageStoreTTL); err != nil {
		log.Warn("Could not refresh chat expiry", "error", err)
	}
	log.Debug("Saved chat turn")
	return nil
}

// GetMessageHistory returns the retained turns, oldest first.
func (s *RedisMessageStore) GetMessageHistory(ctx context.Context, chatId string) ([]jobModel.ChatTurn, error) {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("chatId", chatId)
	if !s.ValidateChatId(ctx, chatId) {
		return nil, fmt.Errorf("chat %s: %w", chatId, commonModels.ErrNotFound)
	}
	raw, err := s.store.ListTail(ctx, chatTurnsPrefix+chatId, int64(s.keep))
	if err != nil {
		log.Error("Error getting history", "error", err)
		return nil, err
	}
	turns := make([]jobModel.ChatTurn, 0, len(raw))
	for _, r := range raw {
		var t jobModel.ChatTurn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			log.Warn("Skipping corrupt chat turn", "error", err)
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}
