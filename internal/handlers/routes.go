package handlers

import "github.com/labstack/echo/v4"

// API bundles the JSON handlers mounted under /api
type API struct {
	Catalog     *CatalogHandler
	Structures  *FeeStructureHandler
	Enrollments *EnrollmentHandler
	Payments    *PaymentHandler
	Reports     *ReportHandler
}

// RegisterRoutes mounts the API on g. Auth middleware is applied by the caller.
func (a *API) RegisterRoutes(g *echo.Group) {
	g.POST("/academic-years", a.Catalog.CreateAcademicYear)
	g.POST("/classes", a.Catalog.CreateClass)
	g.POST("/students", a.Catalog.CreateStudent)

	g.POST("/fee-templates", a.Catalog.CreateFeeTemplate)
	g.POST("/fee-templates/:id/deactivate", a.Catalog.DeactivateFeeTemplate)
	g.POST("/scholarship-templates", a.Catalog.CreateScholarshipTemplate)
	g.POST("/scholarship-templates/:id/deactivate", a.Catalog.DeactivateScholarshipTemplate)

	g.POST("/fee-structures", a.Structures.Create)
	g.GET("/fee-structures/resolve", a.Structures.Resolve)
	g.GET("/fee-structures/:id", a.Structures.Get)
	g.POST("/fee-structures/:id/copy", a.Structures.Copy)
	g.POST("/fee-structures/:id/deactivate", a.Structures.Deactivate)

	g.POST("/enrollments", a.Enrollments.Create)
	g.GET("/enrollments/:id", a.Enrollments.Get)
	g.POST("/enrollments/:id/deactivate", a.Enrollments.Deactivate)
	g.POST("/enrollments/:id/fees/:feeId/waive", a.Enrollments.WaiveFee)
	g.POST("/enrollments/:id/payments", a.Payments.Collect)

	g.GET("/payments/:id", a.Payments.Get)
	g.POST("/payments/:id/cancel", a.Payments.Cancel)

	g.GET("/reports/outstanding", a.Reports.Outstanding)
	g.GET("/reports/receipts", a.Reports.Receipts)
	g.GET("/reports/dashboard", a.Reports.Dashboard)
}
