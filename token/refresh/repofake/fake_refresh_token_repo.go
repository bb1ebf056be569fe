package refreshrepofake

import (
	"sort"
	"sync"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens  map[string]*refresh.StoredRefreshToken
	userIDs map[string]map[string]struct{} // user ID to token set
	lock    sync.RWMutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens:  make(map[string]*refresh.StoredRefreshToken),
		userIDs: make(map[string]map[string]struct{}),
	}
}

func (tr *FakeRefreshTokenRepo) Upsert(refreshToken *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[refreshToken.Token] = refreshToken
	if tr.userIDs[refreshToken.UserID] == nil {
		tr.userIDs[refreshToken.UserID] = make(map[string]struct{})
	}
	tr.userIDs[refreshToken.UserID][refreshToken.Token] = struct{}{}
	return nil
}

func (tr *FakeRefreshTokenRepo) Delete(token string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return errors.ErrNotFound
	}
	delete(tr.tokens, token)
	delete(tr.userIDs[rt.UserID], token)
	if len(tr.userIDs[rt.UserID]) == 0 {
		delete(tr.userIDs, rt.UserID)
	}
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(token string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	rt, ok := tr.tokens[token]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return rt, nil
}

func (tr *FakeRefreshTokenRepo) ListByUserID(userID string) ([]*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	tokens := make([]*refresh.StoredRefreshToken, 0, len(tr.userIDs[userID]))
	for t := range tr.userIDs[userID] {
		tokens = append(tokens, tr.tokens[t])
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Iat.Before(tokens[j].Iat)
	})
	return tokens, nil
}

func (tr *FakeRefreshTokenRepo) DeleteByUserID(userID string) (int, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	n := len(tr.userIDs[userID])
	for t := range tr.userIDs[userID] {
		delete(tr.tokens, t)
	}
	delete(tr.userIDs, userID)
	return n, nil
}
