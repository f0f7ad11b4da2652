package app

import (
	"context"
	"time"

	"movesethub/api/internal/auth"
	"movesethub/api/internal/authpw"
	"movesethub/api/internal/config"
	"movesethub/api/internal/moderation"
	"movesethub/api/internal/rbac"
	"movesethub/api/internal/search"
	"movesethub/api/internal/store"
	"movesethub/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	ModderID     *int64
	JTI          string
	ExpiresAt    time.Time
}

// Actor converts the session into the identity the policy engine reasons
// about. The zero Session is an anonymous guest.
func (s Session) Actor() moderation.Actor {
	return moderation.Actor{
		ID:       s.UserID,
		Role:     rbac.Normalize(s.Role),
		ModderID: s.ModderID,
	}
}

type dataStore interface {
	CreateUser(context.Context, store.User) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)

	ListModders(context.Context) ([]store.Modder, error)
	GetModder(context.Context, int64) (store.Modder, error)
	CreateModderWithEvent(context.Context, store.Modder, moderation.Event) (store.Modder, error)
	UpdateModderWithEvent(context.Context, store.Modder, moderation.Event, int64) error
	DeleteModder(context.Context, int64) error

	ListMovesets(context.Context, store.MovesetFilter) ([]store.Moveset, error)
	GetMoveset(context.Context, int64) (store.Moveset, error)
	GetMovesetBySlottedID(context.Context, string) (store.Moveset, error)
	CreateMovesetWithEvent(context.Context, store.Moveset, []int64, moderation.Event) (store.Moveset, error)
	UpdateMovesetWithEvent(context.Context, store.Moveset, []int64, moderation.Event, int64) error
	DeleteMoveset(context.Context, int64) error
	MovesetCredits(context.Context, int64) ([]store.MovesetModder, error)
	SetAdminPicks(context.Context, []int64) error

	ListSeries(context.Context) ([]store.Series, error)
	GetSeries(context.Context, int64) (store.Series, error)
	CreateSeriesWithEvent(context.Context, store.Series, moderation.Event) (store.Series, error)
	UpdateSeriesWithEvent(context.Context, store.Series, moderation.Event, int64) error
	DeleteSeries(context.Context, int64) error
	SeriesMovesetCounts(context.Context) ([]store.SeriesMovesetCount, error)

	ItemHistory(context.Context, moderation.ItemType, int64) (moderation.History, error)
	LatestEvent(context.Context, moderation.ItemType, int64) (*moderation.Event, error)
	AppendEvent(context.Context, moderation.Event, int64) (moderation.Event, error)
	AppendModderDecision(context.Context, moderation.Event, int64) (moderation.Event, error)
	GetEvent(context.Context, int64) (store.LogEntry, error)
	ListEvents(context.Context, int) ([]store.LogEntry, error)
	ListEventsForUser(context.Context, store.User, int) ([]store.LogEntry, error)

	MovesetModderIDs(context.Context, int64) ([]int64, error)
	SeriesModderIDs(context.Context, int64) ([]int64, error)
	SeriesMovesetCount(context.Context, int64) (int, error)

	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	authpw   *authpw.Service
	search   *search.Service
	owners   *moderation.Ownership
	vis      *moderation.Visibility
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, authService *authpw.Service, searchService *search.Service) *Service {
	owners := moderation.NewOwnership(dataStore)
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		authpw:   authService,
		search:   searchService,
		owners:   owners,
		vis:      moderation.NewVisibility(owners, dataStore),
	}
}

// newService wires a Service over fakes for tests.
func newService(cfg config.Config, dataStore dataStore, sessions sessionStore) *Service {
	owners := moderation.NewOwnership(dataStore)
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		owners:   owners,
		vis:      moderation.NewVisibility(owners, dataStore),
	}
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Prefer the database record: the stored snapshot predates any promotion
	// that happened during the session.
	if fresh, err := s.store.GetUserByID(ctx, user.ID); err == nil {
		user = fresh
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:      user.ID,
		Name:     user.DisplayName,
		Role:     user.Role,
		ModderID: user.ModderID,
		JTI:      jti,
		Exp:      expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		ModderID:     user.ModderID,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken re-reads the user so a freshly promoted modder's session
// reflects the new role and link before their token expires.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		ModderID:  user.ModderID,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Search runs a public moveset search. No session needed: the indexes only
// ever contain publicly visible movesets.
func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}
