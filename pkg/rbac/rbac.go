package rbac

import "fmt"

// 权限常量
const (
	// 管理员权限
	PermissionCreateProject = "project:create"
	PermissionDeleteProject = "project:delete"
	PermissionManageSprint  = "sprint:manage"
	PermissionManageStatus  = "status:manage"
	PermissionReplayOutbox  = "outbox:replay"

	// 成员权限
	PermissionReadBoard    = "board:read"
	PermissionReorderBoard = "board:reorder"
	PermissionWriteIssue   = "issue:write"
	PermissionCreateSprint = "sprint:create"
)

// 角色常量，与身份提供方的组织角色一致
const (
	RoleMember = "org:member"
	RoleAdmin  = "org:admin"
)

var memberPermissions = []string{
	PermissionReadBoard,
	PermissionReorderBoard,
	PermissionWriteIssue,
	PermissionCreateSprint,
}

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleMember: memberPermissions,
	RoleAdmin: append([]string{
		PermissionCreateProject,
		PermissionDeleteProject,
		PermissionManageSprint,
		PermissionManageStatus,
		PermissionReplayOutbox,
	}, memberPermissions...),
}

// Principal 某个组织内已认证的调用者
type Principal struct {
	UserID         string
	OrganizationID string
	Role           string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsKnownRole 判断是否为已知的组织角色
func IsKnownRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role string, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查调用者是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(p Principal, permission string) error {
	if !HasPermission(p.Role, permission) {
		return &PermissionDeniedError{
			UserID:     p.UserID,
			Role:       p.Role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	UserID     string
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("insufficient permissions: %s requires %s", e.Role, e.Permission)
}
