/*
Package feature describes the characteristics a tree can split on and the
threshold criteria its splits impose on observations.
*/
package feature

import "fmt"

/*
Characteristic is a ranked characteristic of a panel: its name and the
position of its values on the observations' characteristic vectors.
*/
type Characteristic struct {
	Index int
	Name  string
}

func (c Characteristic) String() string {
	return c.Name
}

/*
Resolve takes the characteristic names of a panel and a whitelist of names and
returns the whitelisted characteristics in whitelist order. An empty whitelist
selects every characteristic in panel order. An error is returned if a
whitelisted name is not available or is repeated.
*/
func Resolve(available []string, whitelist []string) ([]Characteristic, error) {
	if len(whitelist) == 0 {
		result := make([]Characteristic, len(available))
		for i, name := range available {
			result[i] = Characteristic{i, name}
		}
		return result, nil
	}
	index := make(map[string]int, len(available))
	for i, name := range available {
		index[name] = i
	}
	seen := make(map[string]bool, len(whitelist))
	result := make([]Characteristic, 0, len(whitelist))
	for _, name := range whitelist {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("characteristic %s is not defined", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("characteristic %s listed twice", name)
		}
		seen[name] = true
		result = append(result, Characteristic{i, name})
	}
	return result, nil
}
