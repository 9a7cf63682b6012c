package repository

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestChatRepository_CreateGetDelete(t *testing.T) {
	repo := NewChatRepository(newTestDB(t))

	chat := &domain.Chat{Title: "Ouvrir une boulangerie", FocusMode: domain.FocusWebSearch, Files: []string{"f1"}}
	require.NoError(t, repo.Create(chat))
	assert.NotEmpty(t, chat.ID)

	got, err := repo.Get(chat.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, chat.Title, got.Title)
	assert.Equal(t, []string{"f1"}, got.Files)

	missing, err := repo.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Delete(chat.ID))
	err = repo.Delete(chat.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChatRepository_Messages(t *testing.T) {
	repo := NewChatRepository(newTestDB(t))

	chat := &domain.Chat{Title: "t", FocusMode: domain.FocusUploads}
	require.NoError(t, repo.Create(chat))

	require.NoError(t, repo.CreateMessage(&domain.Message{ChatID: chat.ID, Role: domain.RoleUser, Content: "Bonjour"}))
	require.NoError(t, repo.CreateMessage(&domain.Message{
		ChatID:      chat.ID,
		Role:        domain.RoleAssistant,
		Content:     "Réponse",
		Sources:     []domain.Source{{PageContent: "extrait", Metadata: domain.SourceMetadata{Title: "Doc", Type: domain.DocTypeWeb}}},
		Suggestions: []string{"Et ensuite ?"},
	}))

	messages, err := repo.GetMessages(chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	require.Len(t, messages[1].Sources, 1)
	assert.Equal(t, "Doc", messages[1].Sources[0].Metadata.Title)
	assert.Equal(t, []string{"Et ensuite ?"}, messages[1].Suggestions)

	chats, err := repo.CountChats()
	require.NoError(t, err)
	assert.Equal(t, 1, chats)
	userMessages, err := repo.CountMessages()
	require.NoError(t, err)
	assert.Equal(t, 1, userMessages)

	// messages go with their chat
	require.NoError(t, repo.Delete(chat.ID))
	messages, err = repo.GetMessages(chat.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestChatRepository_List(t *testing.T) {
	repo := NewChatRepository(newTestDB(t))

	first := &domain.Chat{Title: "first", FocusMode: domain.FocusWebSearch}
	second := &domain.Chat{Title: "second", FocusMode: domain.FocusWebSearch}
	require.NoError(t, repo.Create(first))
	require.NoError(t, repo.Create(second))
	require.NoError(t, repo.Touch(first.ID))

	chats, err := repo.List(10)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, first.ID, chats[0].ID)
}
