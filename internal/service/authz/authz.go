// Package authz содержит булевы проверки прав вызывающего. Аутентификация здесь не выполняется.
package authz

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// Ключи metadata, которые проставляет внешний шлюз аутентификации.
const (
	MetadataUserID = "x-user-id"
	MetadataRole   = "x-user-role"
)

// RoleAdmin — роль администратора.
const RoleAdmin = "admin"

// Caller — вызывающий пользователь.
type Caller struct {
	UserID string
	Role   string
}

// IsAdmin сообщает, есть ли у вызывающего права администратора.
func IsAdmin(caller Caller) bool {
	return strings.EqualFold(caller.Role, RoleAdmin)
}

// IsOwnerOrAdmin разрешает доступ владельцу ресурса или администратору.
func IsOwnerOrAdmin(caller Caller, targetUserID string) bool {
	if IsAdmin(caller) {
		return true
	}
	return caller.UserID != "" && caller.UserID == targetUserID
}

// FromIncomingContext читает вызывающего из входящей gRPC metadata.
func FromIncomingContext(ctx context.Context) (Caller, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Caller{}, false
	}
	caller := Caller{
		UserID: first(md, MetadataUserID),
		Role:   first(md, MetadataRole),
	}
	return caller, caller.UserID != ""
}

// AppendToOutgoingContext добавляет вызывающего в исходящую metadata клиента.
func AppendToOutgoingContext(ctx context.Context, caller Caller) context.Context {
	pairs := []string{MetadataUserID, caller.UserID}
	if caller.Role != "" {
		pairs = append(pairs, MetadataRole, caller.Role)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

func first(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}
