package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminIDs []int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether userID is listed. An empty list admits nobody.
func (o AdminOptions) IsAdmin(userID int64) bool {
	for _, id := range o.AdminIDs {
		if id != 0 && id == userID {
			return true
		}
	}
	return false
}

// AdminOnlyMiddleware ensures that only admin users can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || !opts.IsAdmin(user.ID) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
