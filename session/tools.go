package session

import (
	"context"

	"toolshed/router"
)

// toolHandlers is the static table of tool behaviour. Each entry builds the
// handler bound to one session.
var toolHandlers = map[string]func(*Session) router.Handler{
	"peeler":  func(*Session) router.Handler { return peelerTool{} },
	"rotator": func(s *Session) router.Handler { return rotatorTool{s: s} },
}

func bindHandlers(s *Session) map[string]router.Handler {
	hs := make(map[string]router.Handler, len(toolHandlers))
	for id, build := range toolHandlers {
		hs[id] = build(s)
	}
	return hs
}

// peelerTool keeps no state; the panel talks to the stateless peel endpoint.
type peelerTool struct{}

func (peelerTool) Activate(context.Context, router.Container) error { return nil }
func (peelerTool) Teardown()                                        {}

// rotatorTool starts every activation with an empty image set, the way a
// freshly loaded panel would, and frees the images when the panel goes away.
type rotatorTool struct{ s *Session }

func (t rotatorTool) Activate(context.Context, router.Container) error {
	t.s.resetImages()
	return nil
}

func (t rotatorTool) Teardown() { t.s.resetImages() }
