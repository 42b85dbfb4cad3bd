package response

import "github.com/gin-gonic/gin"

// ErrorBody is the uniform error envelope for every non-2xx JSON
// response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

func Detail(c *gin.Context, httpStatus int, detail string) {
	c.JSON(httpStatus, ErrorBody{Detail: detail})
}
