package public

import (
	"errors"

	handlershared "github.com/saleshop/internal/http/handlers/shared"
	"github.com/saleshop/internal/http/response"
	"github.com/saleshop/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		handlershared.RespondErrorWithData(c, response.CodeBadRequest, "validation failed", gin.H{"fields": verr.Fields}, nil)
		return
	}
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			// 5xx 规则保留原始错误用于日志
			var cause error
			if rule.code >= response.CodeInternal {
				cause = err
			}
			respondError(c, rule.code, rule.msg, cause)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var catalogErrorRules = []mappedHandlerError{
	{target: service.ErrStaleCatalog, code: response.CodeConflict, msg: "catalog refresh superseded"},
	{target: service.ErrEmptyCatalog, code: response.CodeBadGateway, msg: "catalog has no products on sale"},
	{target: service.ErrMalformedCatalog, code: response.CodeBadGateway, msg: "catalog response malformed"},
	{target: service.ErrNetwork, code: response.CodeBadGateway, msg: "catalog unavailable"},
}

var cartErrorRules = []mappedHandlerError{
	{target: service.ErrProductNotFound, code: response.CodeNotFound, msg: "product not found"},
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrEmptyCart, code: response.CodeBadRequest, msg: "cart is empty"},
	{target: service.ErrInvalidTransition, code: response.CodeBadRequest, msg: "checkout state does not allow this action"},
	{target: service.ErrAlreadyInProgress, code: response.CodeConflict, msg: "submission already in progress"},
	{target: service.ErrSubmission, code: response.CodeBadGateway, msg: "order submission failed"},
}

func respondCatalogError(c *gin.Context, err error) {
	respondWithMappedError(c, err, catalogErrorRules, response.CodeInternal, "catalog load failed")
}

func respondCartError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(cartErrorRules, catalogErrorRules), response.CodeInternal, "cart update failed")
}

func respondCheckoutError(c *gin.Context, err error) {
	respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "checkout failed")
}
