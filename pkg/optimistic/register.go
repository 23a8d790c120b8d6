package optimistic

import "avlset/pkg/setapi"

func init() {
	setapi.Register(setapi.Optimistic, func() setapi.Set {
		return New()
	})
}
