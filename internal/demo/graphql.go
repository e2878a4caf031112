package demo

import (
	"net/http"

	cqerrors "github.com/Combine-Capital/cqtrace/pkg/errors"
	"github.com/Combine-Capital/cqtrace/pkg/graphql"
	"github.com/gin-gonic/gin"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

type graphqlRequest struct {
	OperationName string                 `json:"operationName"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
}

// resolvers maps operation names to canned outcomes. Unknown operations
// succeed with an empty data object.
var resolvers = map[string]func(req graphqlRequest) (interface{}, gqlerror.List){
	"Jobs": func(graphqlRequest) (interface{}, gqlerror.List) {
		return map[string]interface{}{"jobs": []interface{}{}}, nil
	},
	"DeleteJob": func(graphqlRequest) (interface{}, gqlerror.List) {
		return nil, gqlerror.List{{Message: "not allowed to delete jobs", Err: cqerrors.NewForbidden("delete job")}}
	},
	"PostJob": func(req graphqlRequest) (interface{}, gqlerror.List) {
		v := cqerrors.NewValidation()
		if title, _ := req.Variables["title"].(string); title == "" {
			v.Add("title", "must not be empty")
		}
		if err := v.Err(); err != nil {
			return nil, gqlerror.List{{Message: "invalid job", Err: err}}
		}
		return map[string]interface{}{"postJob": req.Variables}, nil
	},
}

// graphql answers a GraphQL POST. Resolver errors are logged through the
// error logger and shaped by the formatter before reaching the client.
func (s *server) graphql(c *gin.Context) {
	h := s.GraphQL.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, cqerrors.NewInvalidInput("body", err.Error()))
			return
		}

		var data interface{} = map[string]interface{}{}
		var errs gqlerror.List
		if resolve, ok := resolvers[req.OperationName]; ok {
			data, errs = resolve(req)
		}
		if len(errs) == 0 {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}

		s.GraphQL.DidEncounterErrors(r.Context(), errs)
		format := graphql.ErrorFormatter(s.Format)
		out := make(gqlerror.List, 0, len(errs))
		for _, e := range errs {
			out = append(out, format(e))
		}
		c.JSON(http.StatusOK, gin.H{"data": data, "errors": out})
	}))
	h.ServeHTTP(c.Writer, c.Request)
}
