package repository

import (
	"net/url"
	"strconv"
)

// Cache key layout. Every component that is not an integer id is query-escaped
// so a ':' inside an email or subject cannot collide with another key.
const (
	articlePrefix  = "article:"
	articlesPrefix = "articles:"
	imagesPrefix   = "images:article:"
)

func ArticleKey(id int64) string { return articlePrefix + strconv.FormatInt(id, 10) }

func ArticlesAllKey() string { return articlesPrefix + "all" }

func ArticlesByUserKey(userID int64) string {
	return articlesPrefix + "user:" + strconv.FormatInt(userID, 10)
}

func CategoryKey(id int64) string { return "category:" + strconv.FormatInt(id, 10) }

func CategoriesAllKey() string { return "categories:all" }

func UserKey(id int64) string { return "user:" + strconv.FormatInt(id, 10) }

func UserBySubKey(sub string) string { return "user:sub:" + url.QueryEscape(sub) }

func UserByEmailKey(email string) string { return "user:email:" + url.QueryEscape(email) }

func UsersAllKey() string { return "users:all" }

func ImagesByArticleKey(articleID int64) string {
	return imagesPrefix + strconv.FormatInt(articleID, 10)
}
