package assets

import "strings"

// PublicEntityPredicate 链接时未显式指定可见性，返回 true 的实体类型把文件提升为 public
type PublicEntityPredicate func(app, entityType string) bool

// EntityTypePredicate 按实体类型白名单判断，大小写不敏感
func EntityTypePredicate(entityTypes []string) PublicEntityPredicate {
	allowed := make(map[string]struct{}, len(entityTypes))
	for _, t := range entityTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			allowed[t] = struct{}{}
		}
	}
	return func(_, entityType string) bool {
		_, ok := allowed[strings.ToLower(entityType)]
		return ok
	}
}
