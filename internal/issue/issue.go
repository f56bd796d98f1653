// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ManifestNotFoundId Id = iota + 1
	ManifestParseErrorId
	ContainerEngineNotFoundId
	PackageNotInstalledId
	DependencyCycleId
	InvalidImageNameId
	ImageBuildFailedId
	ImageIdNotFoundId
	ImagePushFailedId
	ImageRemoveFailedId
	ConfigLoadFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# Export manifest not found!

The build needs a manifest describing the packages to export.

## Things you can try:
- Check the path you passed to the command
- Generate a manifest from your installed packages and retry:
~~~
$ imgexport build ./export.cue
~~~`,
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Export manifest is invalid!

The manifest could not be validated against the #Manifest schema.

## Things you can try:
- Every package ident needs at least an origin and a name (` + "`core/redis`" + `)
- The primary service ident must be listed in ` + "`packages`" + `
- Users and groups need a numeric uid/gid

## Minimal manifest:
~~~cue
base_image: "scratch"
primary_service: "core/redis"
packages: [
  {ident: "core/redis/4.0.14/20190319155852"},
]
~~~`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

Neither Docker nor Podman could be reached.

## Things you can try:
- Install Docker or Podman and make sure the daemon/service is running
- Select the engine explicitly:
~~~
$ imgexport build --engine podman ./export.cue
~~~`,
		extLinks: []HttpLink{
			"https://docs.docker.com/engine/install/",
			"https://podman.io/docs/installation",
		},
	}

	packageNotInstalledIssue = &Issue{
		id: PackageNotInstalledId,
		mdMsg: `
# Package not installed in the build root!

A package named by the manifest has no installed release under ` + "`hab/pkgs`" + ` in the staged root.

## Things you can try:
- Install the package into the root before exporting
- Relax the ident in the manifest (` + "`origin/name`" + ` picks the latest release)`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

The package dependencies in the manifest form a cycle, so no install order exists.

## Things you can try:
- Review the ` + "`deps`" + ` of the packages named in the error
- Remove the dependency that closes the cycle`,
	}

	invalidImageNameIssue = &Issue{
		id: InvalidImageNameId,
		mdMsg: `
# Invalid image name or tag!

The naming policy produced an identifier that is not a valid image reference.

## Things you can try:
- Keep image names lowercase; template output is lower-cased but other characters are not rewritten
- Tags may only contain letters, digits, ` + "`_`, `.` and `-`" + `
- Check ` + "`naming.image_name`" + ` in your config file`,
	}

	imageBuildFailedIssue = &Issue{
		id: ImageBuildFailedId,
		mdMsg: `
# Image build failed!

The container engine returned a non-zero exit code while building the image.

## Things you can try:
- Re-run with ` + "`--verbose`" + ` to see the full engine output
- Ensure the base image can be pulled
- Increase the build memory with ` + "`--memory`" + ``,
	}

	imageIdNotFoundIssue = &Issue{
		id: ImageIdNotFoundId,
		mdMsg: `
# Image id not found!

The build reported success but the engine lists no image for the built name.

## Things you can try:
- List local images and check the name:
~~~
$ docker images
~~~
- Make sure no other process removed the image in the meantime`,
	}

	imagePushFailedIssue = &Issue{
		id: ImagePushFailedId,
		mdMsg: `
# Image push failed!

The registry rejected an upload. Tags pushed before the failure stay in the registry.

## Things you can try:
- Check your registry credentials (` + "`--username`/`--password`" + ` or ` + "`IMGEXPORT_REGISTRY_TOKEN`" + `)
- Check that ` + "`registry_url`" + ` points at the right registry
- Verify you have push permission for the repository`,
		extLinks: []HttpLink{"https://docs.docker.com/reference/cli/docker/login/"},
	}

	imageRemoveFailedIssue = &Issue{
		id: ImageRemoveFailedId,
		mdMsg: `
# Image removal failed!

The local image could not be removed after the export.

## Things you can try:
- Stop containers still using the image
- Remove it manually once it is no longer in use:
~~~
$ docker rmi <image id>
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

There was an error loading your imgexport configuration file.

## Things you can try:
- Check the config file syntax (CUE format)
- Show the effective configuration:
~~~
$ imgexport config show
~~~
- Temporarily move the config file away to fall back to the defaults`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to perform this operation.

## Things you can try:
- Check permissions of the staging directory and the report directory
- For the engine, ensure you're in the docker group:
~~~
$ sudo usermod -aG docker $USER
~~~
- Use rootless Podman`,
	}

	issues = map[Id]*Issue{
		manifestNotFoundIssue.Id():        manifestNotFoundIssue,
		manifestParseErrorIssue.Id():      manifestParseErrorIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		packageNotInstalledIssue.Id():     packageNotInstalledIssue,
		dependencyCycleIssue.Id():         dependencyCycleIssue,
		invalidImageNameIssue.Id():        invalidImageNameIssue,
		imageBuildFailedIssue.Id():        imageBuildFailedIssue,
		imageIdNotFoundIssue.Id():         imageIdNotFoundIssue,
		imagePushFailedIssue.Id():         imagePushFailedIssue,
		imageRemoveFailedIssue.Id():       imageRemoveFailedIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		permissionDeniedIssue.Id():        permissionDeniedIssue,
	}
)

// Values returns every catalogued issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, is := range issues {
		out = append(out, is)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
