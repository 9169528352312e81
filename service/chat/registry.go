package chat

import (
	"sort"
	"sync"

	"PRelay/tools/errs"
)

// AgentSet 坐席白名单，启动时加载，之后只读
type AgentSet struct {
	names []string
	m     map[string]struct{}
}

func NewAgentSet(names ...string) AgentSet {
	a := AgentSet{m: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := a.m[n]; ok {
			continue
		}
		a.m[n] = struct{}{}
		a.names = append(a.names, n)
	}
	return a
}

func (a AgentSet) Contains(name string) bool {
	_, ok := a.m[name]
	return ok
}

func (a AgentSet) RoleOf(name string) Role {
	if a.Contains(name) {
		return RoleAgent
	}
	return RolePlainUser
}

// Names 配置顺序
func (a AgentSet) Names() []string {
	return append([]string(nil), a.names...)
}

// Registry username -> *Session，按角色分成两张不相交的表。
// 只持有非拥有引用，连接由传输层管理。
type Registry struct {
	mu     sync.RWMutex
	users  map[string]*Session
	agents map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]*Session),
		agents: make(map[string]*Session),
	}
}

func (r *Registry) table(role Role) map[string]*Session {
	if role == RoleAgent {
		return r.agents
	}
	return r.users
}

// Register 用户名在两张表中都不存在时插入，否则 ErrDuplicateRegistration
func (r *Registry) Register(username string, s *Session, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; ok {
		return errs.ErrDuplicateRegistration.WrapMsg("register", "username", username)
	}
	if _, ok := r.agents[username]; ok {
		return errs.ErrDuplicateRegistration.WrapMsg("register", "username", username)
	}
	r.table(role)[username] = s
	return nil
}

// Resolve 先查 users 再查 agents
func (r *Registry) Resolve(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.users[username]; ok {
		return s, true
	}
	s, ok := r.agents[username]
	return s, ok
}

// Remove 幂等
func (r *Registry) Remove(username string) (Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; ok {
		delete(r.users, username)
		return RolePlainUser, true
	}
	if _, ok := r.agents[username]; ok {
		delete(r.agents, username)
		return RoleAgent, true
	}
	return RolePlainUser, false
}

// RemoveIfBound 只有绑定仍指向 s 时才删除
func (r *Registry) RemoveIfBound(username string, s *Session) (Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.users[username]; ok && cur == s {
		delete(r.users, username)
		return RolePlainUser, true
	}
	if cur, ok := r.agents[username]; ok && cur == s {
		delete(r.agents, username)
		return RoleAgent, true
	}
	return RolePlainUser, false
}

// Usernames 某角色的在线用户名快照，已排序，不为 nil
func (r *Registry) Usernames(role Role) []string {
	r.mu.RLock()
	t := r.table(role)
	out := make([]string, 0, len(t))
	for name := range t {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Sessions 所有已注册会话（users + agents）
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.users)+len(r.agents))
	for _, s := range r.users {
		out = append(out, s)
	}
	for _, s := range r.agents {
		out = append(out, s)
	}
	return out
}

// AgentSessions 所有在线坐席
func (r *Registry) AgentSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.agents))
	for _, s := range r.agents {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users) + len(r.agents)
}
