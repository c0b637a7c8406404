package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zerodb/errs"
	"zerodb/middleware"
	"zerodb/models"
	"zerodb/registry"
)

func CreateProject(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			fail(c, errs.InvalidAPIKey("Missing X-API-Key header"))
			return
		}

		var req models.CreateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, errs.BindingError(err, "body"))
			return
		}

		project, err := reg.Create(c.Request.Context(), principal, req)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusCreated, project)
	}
}

func ListProjects(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			fail(c, errs.InvalidAPIKey("Missing X-API-Key header"))
			return
		}

		var params models.ListProjectsParams
		if err := c.ShouldBindQuery(&params); err != nil {
			bindErr := errs.BindingError(err, "query")
			fail(c, errs.InvalidQuery(bindErr.Detail, bindErr.ValidationErrors...))
			return
		}

		resp, err := reg.List(c.Request.Context(), principal, params)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// GetProject returns the project with the caller's quota usage for its tier.
func GetProject(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			fail(c, errs.InvalidAPIKey("Missing X-API-Key header"))
			return
		}

		ctx := c.Request.Context()
		project, err := reg.Get(ctx, principal, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}

		usage, err := reg.Usage(ctx, principal, project.Tier)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, models.ProjectDetail{Project: *project, Usage: usage})
	}
}

func DeleteProject(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.PrincipalFrom(c)
		if !ok {
			fail(c, errs.InvalidAPIKey("Missing X-API-Key header"))
			return
		}

		project, err := reg.Delete(c.Request.Context(), principal, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, project)
	}
}

// ChangeStatus is the administrative status transition endpoint.
func ChangeStatus(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.StatusChangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, errs.BindingError(err, "body"))
			return
		}

		project, err := reg.Transition(c.Request.Context(), c.Param("id"), req.Status, req.Reason)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, project)
	}
}

// fail hands err to middleware.ErrorHandler and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
