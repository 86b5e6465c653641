package cluster

import (
	"github.com/dhis2-sre/mq-manager/pkg/catalog"
	"github.com/gin-gonic/gin"
)

type AuthenticationMiddleware interface {
	TokenAuthentication(context *gin.Context)
}

type AuthorizationMiddleware interface {
	RequireProject(context *gin.Context)
}

func Routes(r gin.IRouter, authenticationMiddleware AuthenticationMiddleware, authorizationMiddleware AuthorizationMiddleware, handler Handler) {
	tokenAuthenticationRouter := r.Group("")
	tokenAuthenticationRouter.Use(authenticationMiddleware.TokenAuthentication)

	projectRestrictedRouter := tokenAuthenticationRouter.Group("")
	projectRestrictedRouter.Use(authorizationMiddleware.RequireProject, catalog.RequestCache())
	projectRestrictedRouter.POST("/clusters", handler.Create)
	projectRestrictedRouter.GET("/clusters", handler.List)
	projectRestrictedRouter.GET("/clusters/:id", handler.Find)
	projectRestrictedRouter.DELETE("/clusters/:id", handler.Delete)
}
