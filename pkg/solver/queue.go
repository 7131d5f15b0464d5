package solver

import (
	"github.com/glorpus-work/qpkg/pkg/semver"
)

type failedVersion struct {
	v semver.Version
	f error
}

// versionQueue walks the candidates of one package, highest first, and
// remembers why each rejected version failed.
type versionQueue struct {
	id    string
	pi    []semver.Version
	fails []failedVersion
}

func newVersionQueue(id string, candidates []semver.Version) *versionQueue {
	pi := make([]semver.Version, len(candidates))
	copy(pi, candidates)
	return &versionQueue{id: id, pi: pi}
}

func (vq *versionQueue) current() (semver.Version, bool) {
	if len(vq.pi) == 0 {
		return semver.Version{}, false
	}
	return vq.pi[0], true
}

// advance pops the current version, recording fail as the reason it was
// rejected.
func (vq *versionQueue) advance(fail error) {
	if len(vq.pi) == 0 {
		return
	}
	if fail != nil {
		vq.fails = append(vq.fails, failedVersion{v: vq.pi[0], f: fail})
	}
	vq.pi = vq.pi[1:]
}

func (vq *versionQueue) isExhausted() bool {
	return len(vq.pi) == 0
}

// unselected is a container/heap of package ids that some selected package
// depends on but that have no version chosen yet.
type unselected struct {
	sl  []string
	cmp func(a, b string) bool
}

func (u unselected) Len() int { return len(u.sl) }

func (u unselected) Less(i, j int) bool { return u.cmp(u.sl[i], u.sl[j]) }

func (u unselected) Swap(i, j int) { u.sl[i], u.sl[j] = u.sl[j], u.sl[i] }

func (u *unselected) Push(x interface{}) {
	u.sl = append(u.sl, x.(string))
}

func (u *unselected) Pop() interface{} {
	var v string
	v, u.sl = u.sl[len(u.sl)-1], u.sl[:len(u.sl)-1]
	return v
}

func (u *unselected) index(id string) int {
	for i, s := range u.sl {
		if s == id {
			return i
		}
	}
	return -1
}
