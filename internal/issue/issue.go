// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	BuildFileNotFoundId Id = iota + 1
	BuildFileParseErrorId
	ConfigLoadFailedId
	ModuleNotFoundId
	VersionConflictId
	ScopeCycleId
	ProjectCycleId
	RepositoryUnavailableId
	ArtifactUnavailableId
	LockFileStaleId
)

type MarkdownMsg string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id    Id          // ID used to lookup the issue
	mdMsg MarkdownMsg // Markdown text that will be rendered
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	buildFileNotFoundIssue = &Issue{
		id: BuildFileNotFoundId,
		mdMsg: `
# No kiln.cue found!

kiln looks for a build file named kiln.cue in the project directory.

## Things you can try:
- Run kiln from the project root, or pass the directory:
~~~
$ kiln deps tree --dir path/to/project
~~~

## Example kiln.cue:
~~~cue
module: "org.acme:app:1.0.0"
dependencies: [
  {module: "com.google.guava:guava:31.1-jre", scopes: ["compile"]},
  {module: "junit:junit:4.13", scopes: ["test"]},
]
~~~`,
	}

	buildFileParseErrorIssue = &Issue{
		id: BuildFileParseErrorId,
		mdMsg: `
# Failed to parse kiln.cue!

The build file has a syntax error or does not match the #Build schema.

## Things you can try:
- Check the line and column reported above
- Coordinates are written group:name:version, e.g. "junit:junit:4.13"
- Scopes must be declared before use; the built-in ones are compile, runtime, provided and test`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Print the configuration that would be used:
~~~
$ kiln config show
~~~
- Print a complete configuration file to start from:
~~~
$ kiln config dump
~~~
- Check KILN_* environment variables, they override the file`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

No configured repository knows one of the requested modules or versions.

## Things you can try:
- Check the spelling of the group, name and version
- List the configured repositories:
~~~
$ kiln config show
~~~
- Resolve with lenient failure handling to see the whole tree:
~~~
$ KILN_RESOLUTION_FAIL_ON_ERROR=false kiln deps tree
~~~`,
	}

	versionConflictIssue = &Issue{
		id: VersionConflictId,
		mdMsg: `
# Version conflict!

Two dependencies require different releases of the same module and the
conflict strategy is **fail**.

## Things you can try:
- Pin the module in the versions block of kiln.cue:
~~~cue
versions: {"org.slf4j:slf4j-api": "2.0.9"}
~~~
- Or pick another strategy: take-first, take-highest, take-lowest`,
	}

	scopeCycleIssue = &Issue{
		id: ScopeCycleId,
		mdMsg: `
# Scope cycle!

Custom scopes extend each other in a loop. Every scope must eventually
extend only built-in scopes.`,
	}

	projectCycleIssue = &Issue{
		id: ProjectCycleId,
		mdMsg: `
# Project dependency cycle!

Projects of this build depend on each other in a loop.

## Things you can try:
- Move the shared code into a project both can depend on
- Check the project entries of each kiln.cue on the reported path`,
	}

	repositoryUnavailableIssue = &Issue{
		id: RepositoryUnavailableId,
		mdMsg: `
# Repository unavailable!

A configured repository could not be opened.

## Things you can try:
- Check that the repository path exists
- Check the repository kind; run 'kiln config show' to list them`,
	}

	artifactUnavailableIssue = &Issue{
		id: ArtifactUnavailableId,
		mdMsg: `
# Artifact unavailable!

A module resolved but one of its files could not be copied to the cache.

## Things you can try:
- Check free disk space and permissions of the cache directory
- Check that the classifier and type you requested are published`,
	}

	lockFileStaleIssue = &Issue{
		id: LockFileStaleId,
		mdMsg: `
# Lock file out of date!

kiln.lock.toml does not match the current resolution.

## Things you can try:
- Regenerate it:
~~~
$ kiln deps lock
~~~`,
	}

	issues = map[Id]*Issue{
		buildFileNotFoundIssue.Id():     buildFileNotFoundIssue,
		buildFileParseErrorIssue.Id():   buildFileParseErrorIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		moduleNotFoundIssue.Id():        moduleNotFoundIssue,
		versionConflictIssue.Id():       versionConflictIssue,
		scopeCycleIssue.Id():            scopeCycleIssue,
		projectCycleIssue.Id():          projectCycleIssue,
		repositoryUnavailableIssue.Id(): repositoryUnavailableIssue,
		artifactUnavailableIssue.Id():   artifactUnavailableIssue,
		lockFileStaleIssue.Id():         lockFileStaleIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
}

func Get(id Id) *Issue {
	return issues[id]
}
