package coarse

import "avlset/pkg/setapi"

func init() {
	setapi.Register(setapi.Coarse, func() setapi.Set {
		return New()
	})
}
