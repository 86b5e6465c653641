package catalog

import (
	"github.com/gin-gonic/gin"
)

type AuthenticationMiddleware interface {
	TokenAuthentication(context *gin.Context)
}

type AuthorizationMiddleware interface {
	RequireProject(context *gin.Context)
}

func Routes(r gin.IRouter, authenticationMiddleware AuthenticationMiddleware, authorizationMiddleware AuthorizationMiddleware, handler Handler) {
	router := r.Group("")
	router.Use(authenticationMiddleware.TokenAuthentication, authorizationMiddleware.RequireProject, RequestCache())

	router.GET("/flavors", handler.ListFlavors)
	router.GET("/flavors/:id", handler.FindFlavor)
	router.GET("/networks", handler.ListNetworks)
}
