package cli

import (
	"bufio"
	"context"
	"errors"
	"os"

	"github.com/Adam-Huang/reflect/internal/ability"
	"github.com/Adam-Huang/reflect/internal/chat"
	"github.com/Adam-Huang/reflect/internal/embedding"
	"github.com/Adam-Huang/reflect/internal/llm"
	"github.com/Adam-Huang/reflect/internal/memory"
	"github.com/Adam-Huang/reflect/internal/model"
	"github.com/Adam-Huang/reflect/internal/session"
	"github.com/Adam-Huang/reflect/internal/store"
	"github.com/Adam-Huang/reflect/internal/tools"
	"github.com/Adam-Huang/reflect/internal/workflow"
)

// stdin is shared by the chat prompt and the user_check ability.
var stdin = bufio.NewReader(os.Stdin)

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DB)
}

func openSessions() (*session.LocalStore, error) {
	return session.NewLocalStore(cfg.SessionsDir, logger.Named("session"))
}

// newEmbedder returns nil when embeddings are disabled.
func newEmbedder() (embedding.Embedder, func(), error) {
	e := cfg.Embedding
	emb, err := embedding.New(embedding.Options{
		Provider: e.Provider,
		Model:    e.Model,
		BaseURL:  e.BaseURL,
		APIKey:   os.Getenv(e.APIKeyEnv),
		Dims:     e.Dims,
	})
	if err != nil || emb == nil || e.CacheSize <= 0 {
		return emb, func() {}, err
	}
	cached, err := embedding.NewCached(emb, e.CacheSize)
	if err != nil {
		return nil, func() {}, err
	}
	return cached, cached.Close, nil
}

// openManager opens the store and loads the memory manager over it.
func openManager(ctx context.Context) (*memory.Manager, func(), error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	emb, closeEmb, err := newEmbedder()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	closeAll := func() {
		closeEmb()
		st.Close()
	}
	m, err := memory.NewManager(ctx, st, emb, logger.Named("memory"))
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return m, closeAll, nil
}

func newCompleter() (llm.Completer, error) {
	return llm.New(llm.Options{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		MaxTokens: cfg.LLM.MaxTokens,
	})
}

// agent is everything a chat or workflow command needs, wired together.
type agent struct {
	mem       *memory.Manager
	sessions  *session.LocalStore
	assistant *chat.Assistant
	registry  *ability.Registry
	engine    *workflow.Engine
	close     func()
}

func openAgent(ctx context.Context) (*agent, error) {
	m, closeMem, err := openManager(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := openSessions()
	if err != nil {
		closeMem()
		return nil, err
	}
	completer, err := newCompleter()
	if err != nil {
		closeMem()
		return nil, err
	}

	assistant := chat.New(m, completer,
		chat.WithSessions(sessions),
		chat.WithLogger(logger.Named("chat")),
		chat.WithBudget(cfg.Chat.ContextBudget),
		chat.WithHistory(cfg.Chat.HistoryTurns),
		chat.WithReflectWindow(cfg.Chat.ReflectWindow))

	reg := ability.NewRegistry()
	tools.Register(reg, tools.Deps{
		Caller:     assistant,
		Completer:  completer,
		Interactor: tools.NewLineInteractor(stdin, os.Stderr),
		Logger:     logger.Named("tools"),
	})
	engine := workflow.NewEngine(reg, logger.Named("workflow"), cfg.Workflow.MaxDepth)
	assistant.SetRunner(engine)

	return &agent{mem: m, sessions: sessions, assistant: assistant, registry: reg, engine: engine, close: closeMem}, nil
}

// useSession activates the session with id, or the newest one matching name.
// A name with no match, or no criteria at all, starts a new session.
func (a *agent) useSession(ctx context.Context, id, name string) error {
	c := session.Criteria{SessionID: id, SessionName: name}
	var (
		s   *model.Session
		err error
	)
	switch {
	case id != "":
		s, err = a.sessions.Get(ctx, c)
	case name != "":
		s, err = a.sessions.Get(ctx, c)
		if errors.Is(err, session.ErrNotFound) {
			s, err = a.sessions.New(ctx, c)
		}
	default:
		s, err = a.sessions.New(ctx, c)
	}
	if err != nil {
		return err
	}
	a.assistant.SetSession(s)
	return nil
}
