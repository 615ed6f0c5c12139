package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/jobModel"
)

type InMemoryMessageStore struct {
	chatLock sync.RWMutex
	chatMap  map[string][]jobModel.ChatTurn
	owners   map[string]string
	keep     int
}

func NewInMemoryMessageStore() *InMemoryMessageStore {
	return &InMemoryMessageStore{
		chatMap: make(map[string][]jobModel.ChatTurn),
		owners:  make(map[string]string),
		keep:    config.ChatHistoryLength,
	}
}

func (store *InMemoryMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	_, ok := store.chatMap[chatId]
	return ok
}

func (store *InMemoryMessageStore) ChatOwner(ctx context.Context, chatId string) (string, bool) {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	if _, ok := store.chatMap[chatId]; !ok {
		return "", false
	}
	return store.owners[chatId], true
}

func (store *InMemoryMessageStore) InitNewChat(ctx context.Context, id, owner string) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	store.chatMap[id] = make([]jobModel.ChatTurn, 0, store.keep)
	store.owners[id] = owner
	return nil
}

func (store *InMemoryMessageStore) TrySaveChat(ctx context.Context, id string, turn jobModel.ChatTurn) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	turns, ok := store.chatMap[id]
	if !ok {
		return fmt.Errorf("chat %s: %w", id, commonModels.ErrNotFound)
	}
	turns = append(turns, turn)
	if len(turns) > store.keep {
		turns = append([]jobModel.ChatTurn(nil), turns[len(turns)-store.keep:]...)
	}
	store.chatMap[id] = turns
	inMemLogger.Debug("Saved chat turn", "chatId", id)
	return nil
}

func (store *InMemoryMessageStore) GetMessageHistory(ctx context.Context, chatId string) ([]jobModel.ChatTurn, error) {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	turns, ok := store.chatMap[chatId]
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", chatId, commonModels.ErrNotFound)
	}
	return append([]jobModel.ChatTurn(nil), turns...), nil
}
