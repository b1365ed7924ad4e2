package workflow

import "slices"

func (e *Engine) tempInt(userID int64, key string) int {
	v, ok := e.sessions.GetTemp(userID, key)
	if !ok {
		return 0
	}
	n, _ := v.(int)
	return n
}

func (e *Engine) tempInts(userID int64, key string) []int {
	v, ok := e.sessions.GetTemp(userID, key)
	if !ok {
		return nil
	}
	ids, _ := v.([]int)
	return slices.Clone(ids)
}

func (e *Engine) appendTempInts(userID int64, key string, ids ...int) {
	e.sessions.SetTemp(userID, key, append(e.tempInts(userID, key), ids...))
}

// nonZero drops unset message ids.
func nonZero(ids ...int) []int {
	return slices.DeleteFunc(ids, func(id int) bool { return id == 0 })
}
