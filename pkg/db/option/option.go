package option

import "gorm.io/gorm"

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func OrderBy(expr string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Order(expr) })
}

func Limit(n int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Limit(n) })
}

func Where(query any, args ...any) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Where(query, args...) })
}

func Preload(relation string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Preload(relation) })
}
