package hooks

type HookEvent string

const (
	PreAction  HookEvent = "pre-action"
	PostAction HookEvent = "post-action"
)
