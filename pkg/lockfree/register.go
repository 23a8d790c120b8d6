package lockfree

import "avlset/pkg/setapi"

func init() {
	setapi.Register(setapi.KCAS, func() setapi.Set {
		return New()
	})
}
