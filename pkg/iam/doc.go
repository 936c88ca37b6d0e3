// Package iam resolves role based access: the roles an account holds, the
// menu forest and APIs those roles grant, and the applications that own
// them.
//
// Data flows one way. Administrative tooling writes roles, grants and
// menus; this package only reads them through Repository, and exposes
// gates for handlers:
//
//	r.With(iam.RequireRolesMiddleware(svc, login.AccountIDFromContext, "ADMIN")).
//		Get("/admin/report", report)
//
// Two stores are provided. SQLRepository runs on database/sql, normally a
// pgx pool opened through the pgx stdlib driver; InMemRepository backs tests.
package iam
