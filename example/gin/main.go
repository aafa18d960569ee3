package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/apmhq/agent-go"
	"github.com/apmhq/agent-go/contrib/apmgin"
)

func main() {
	if _, err := apmagent.Init(apmagent.ClientOptions{ServiceName: "gin-example"}); err != nil {
		panic(err)
	}
	apmagent.DefaultClient.Start()

	app := gin.Default()

	app.Use(apmgin.Middleware())

	app.Use(func(ctx *gin.Context) {
		apmagent.SetTag(ctx.Request.Context(), "someRandomTag", "maybeYouNeedIt")
		ctx.Next()
	})

	app.GET("/", func(ctx *gin.Context) {
		apmagent.SetCustomContext(ctx.Request.Context(), map[string]interface{}{
			"unwantedQuery": "someQueryDataMaybe",
		})
		apmagent.CaptureMessage(ctx.Request.Context(), "User provided unwanted query string, but we recovered just fine")
		ctx.Status(http.StatusOK)
	})

	app.POST("/foo", func(ctx *gin.Context) {
		panic("y tho")
	})

	if err := app.Run(":3000"); err != nil {
		panic(err)
	}
}
