package marketplace

import "github.com/labstack/echo/v4"

// Register mounts the authenticated marketplace routes on g.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/listings", h.CreateListing)
	g.GET("/listings", h.ListListings)
	g.GET("/listings/:id", h.GetListing)
	g.POST("/listings/:id/close", h.CloseListing)
	g.POST("/listings/:id/handshakes", h.ProposeHandshake)
	g.GET("/listings/:id/handshakes", h.ListListingHandshakes)

	g.GET("/handshakes/me", h.ListMyHandshakes)
	g.GET("/handshakes/:id", h.GetHandshake)
	g.POST("/handshakes/:id/accept", h.AcceptHandshake)
	g.POST("/handshakes/:id/decline", h.DeclineHandshake)
	g.POST("/handshakes/:id/confirm", h.ConfirmCompletion)
	g.GET("/handshakes/:id/rating", h.GetRating)
	g.POST("/handshakes/:id/rating", h.SubmitRating)
}
